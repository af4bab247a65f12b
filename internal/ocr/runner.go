package ocr

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/clinical-timeline/internal/common"
)

// stderrTail caps how much recognizer stderr reaches the logs.
const stderrTail = 8 << 10

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// execRunner runs recognition commands and logs them under the run and
// document carried by ctx.
type execRunner struct {
	logger *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	logger := common.LoggerWith(ctx, r.logger).With("cmd", name, "args", strings.Join(args, " "))
	start := time.Now()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	elapsed := time.Since(start).Milliseconds()

	if err == nil {
		logger.Debug("ocr.exec.ok", "duration_ms", elapsed, "stdout_bytes", stdout.Len(), "stderr_bytes", stderr.Len())
		return stdout.Bytes(), stderr.Bytes(), nil
	}

	attrs := []any{"duration_ms", elapsed, "error", err, "stderr", tail(stderr.String(), stderrTail)}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		attrs = append(attrs, "exit_code", exitErr.ExitCode())
	}
	if ctx.Err() != nil {
		attrs = append(attrs, "ctx_error", ctx.Err())
	}
	logger.Error("ocr.exec.failed", attrs...)
	return stdout.Bytes(), stderr.Bytes(), err
}

// tail keeps the last max bytes of s, cut forward to a rune boundary.
func tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := len(s) - max
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return "(truncated)..." + s[cut:]
}
