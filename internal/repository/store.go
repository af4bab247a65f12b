package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/joseph-ayodele/clinical-timeline/constants"
	"github.com/joseph-ayodele/clinical-timeline/internal/common"
	"github.com/joseph-ayodele/clinical-timeline/internal/entity"
	"github.com/joseph-ayodele/clinical-timeline/internal/timeline"
)

// Timestamps are stored as fixed-width UTC text so they sort lexically on
// both dialects.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Store is the run ledger. It satisfies pipeline.Ledger.
type Store struct {
	drv     *entsql.Driver
	dialect string
	pool    *pgxpool.Pool
	logger  *slog.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func (s *Store) builder() *entsql.DialectBuilder { return entsql.Dialect(s.dialect) }

// newID returns a monotonic ULID, so documents sort in recording order.
func (s *Store) newID(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entropy == nil {
		s.entropy = ulid.Monotonic(rand.Reader, 0)
	}
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

func (s *Store) StartRun(ctx context.Context, run *entity.Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = constants.JobStatusRunning
	}
	q, args := s.builder().Insert("runs").
		Columns("id", "input_dir", "output_dir", "status", "documents", "failed", "events", "started_at").
		Values(run.ID.String(), run.InputDir, run.OutputDir, string(run.Status), run.Documents, run.Failed, run.Events, formatTime(run.StartedAt)).
		Query()
	if err := s.drv.Exec(ctx, q, args, nil); err != nil {
		s.logger.Error("repository.run.start.failed", "run_id", run.ID, "error", err)
		return fmt.Errorf("%w: start run: %v", common.ErrDatabase, err)
	}
	s.logger.Debug("repository.run.start", "run_id", run.ID)
	return nil
}

func (s *Store) FinishRun(ctx context.Context, run *entity.Run) error {
	u := s.builder().Update("runs").
		Set("status", string(run.Status)).
		Set("documents", run.Documents).
		Set("failed", run.Failed).
		Set("events", run.Events)
	if run.FinishedAt != nil {
		u.Set("finished_at", formatTime(*run.FinishedAt))
	}
	q, args := u.Where(entsql.EQ("id", run.ID.String())).Query()

	var res sql.Result
	if err := s.drv.Exec(ctx, q, args, &res); err != nil {
		s.logger.Error("repository.run.finish.failed", "run_id", run.ID, "error", err)
		return fmt.Errorf("%w: finish run: %v", common.ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, common.ErrNotFound)
	}
	s.logger.Debug("repository.run.finish", "run_id", run.ID, "status", run.Status)
	return nil
}

// RecordDocument inserts one document row. An empty ID is filled with a new
// ULID.
func (s *Store) RecordDocument(ctx context.Context, job *entity.DocumentJob) error {
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now().UTC()
	}
	if job.ID == "" {
		job.ID = s.newID(job.StartedAt)
	}
	q, args := s.builder().Insert("documents").
		Columns("id", "run_id", "stage", "source_file", "readable_path", "content_hash", "file_type",
			"recognized", "status", "dates", "records", "error_message", "started_at", "finished_at").
		Values(job.ID, job.RunID.String(), job.Stage, job.SourceFile, job.ReadablePath, job.ContentHash, string(job.FileType),
			job.Recognized, string(job.Status), job.Dates, job.Records, nullString(job.ErrorMessage), formatTime(job.StartedAt), nullTime(job.FinishedAt)).
		Query()
	if err := s.drv.Exec(ctx, q, args, nil); err != nil {
		s.logger.Error("repository.document.failed", "run_id", job.RunID, "source_file", job.SourceFile, "error", err)
		return fmt.Errorf("%w: record document: %v", common.ErrDatabase, err)
	}
	return nil
}

// SaveTimeline replaces the stored events of runID with the events of tl, in
// timeline order.
func (s *Store) SaveTimeline(ctx context.Context, runID uuid.UUID, tl *timeline.Timeline) (rerr error) {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", common.ErrDatabase, err)
	}
	defer func() {
		if rerr != nil {
			rerr = errors.Join(rerr, tx.Rollback())
		}
	}()

	q, args := s.builder().Delete("events").Where(entsql.EQ("run_id", runID.String())).Query()
	if err := tx.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("%w: clear events: %v", common.ErrDatabase, err)
	}

	pos := 0
	for _, date := range tl.Dates() {
		for _, ev := range tl.Events(date) {
			payload, err := json.Marshal(ev)
			if err != nil {
				return fmt.Errorf("encode event: %w", err)
			}
			q, args := s.builder().Insert("events").
				Columns("run_id", "position", "event_date", "record_type", "source_file", "payload").
				Values(runID.String(), pos, date, string(ev.RecordType), ev.SourceFile, string(payload)).
				Query()
			if err := tx.Exec(ctx, q, args, nil); err != nil {
				return fmt.Errorf("%w: insert event: %v", common.ErrDatabase, err)
			}
			pos++
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", common.ErrDatabase, err)
	}
	s.logger.Debug("repository.timeline.saved", "run_id", runID, "events", pos)
	return nil
}

var runColumns = []string{"id", "input_dir", "output_dir", "status", "documents", "failed", "events", "started_at", "finished_at"}

// Run loads one run.
func (s *Store) Run(ctx context.Context, id uuid.UUID) (*entity.Run, error) {
	runs, err := s.queryRuns(ctx, s.builder().Select(runColumns...).
		From(s.builder().Table("runs")).
		Where(entsql.EQ("id", id.String())))
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("run %s: %w", id, common.ErrNotFound)
	}
	return &runs[0], nil
}

// Runs lists the most recent runs first. limit <= 0 lists all.
func (s *Store) Runs(ctx context.Context, limit int) ([]entity.Run, error) {
	sel := s.builder().Select(runColumns...).
		From(s.builder().Table("runs")).
		OrderBy(entsql.Desc("started_at"))
	if limit > 0 {
		sel.Limit(limit)
	}
	return s.queryRuns(ctx, sel)
}

func (s *Store) queryRuns(ctx context.Context, sel *entsql.Selector) ([]entity.Run, error) {
	q, args := sel.Query()
	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, q, args, rows); err != nil {
		return nil, fmt.Errorf("%w: query runs: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entity.Run
	for rows.Next() {
		var (
			r        entity.Run
			id       string
			status   string
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&id, &r.InputDir, &r.OutputDir, &status, &r.Documents, &r.Failed, &r.Events, &started, &finished); err != nil {
			return nil, fmt.Errorf("%w: scan run: %v", common.ErrDatabase, err)
		}
		var err error
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("%w: run id %q: %v", common.ErrDatabase, id, err)
		}
		r.Status = constants.JobStatus(status)
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseNullTime(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Documents lists the document rows of a run in recording order.
func (s *Store) Documents(ctx context.Context, runID uuid.UUID) ([]entity.DocumentJob, error) {
	q, args := s.builder().Select("id", "stage", "source_file", "readable_path", "content_hash", "file_type",
		"recognized", "status", "dates", "records", "error_message", "started_at", "finished_at").
		From(s.builder().Table("documents")).
		Where(entsql.EQ("run_id", runID.String())).
		OrderBy("id").
		Query()
	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, q, args, rows); err != nil {
		return nil, fmt.Errorf("%w: query documents: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entity.DocumentJob
	for rows.Next() {
		var (
			j        entity.DocumentJob
			fileType string
			status   string
			errMsg   sql.NullString
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&j.ID, &j.Stage, &j.SourceFile, &j.ReadablePath, &j.ContentHash, &fileType,
			&j.Recognized, &status, &j.Dates, &j.Records, &errMsg, &started, &finished); err != nil {
			return nil, fmt.Errorf("%w: scan document: %v", common.ErrDatabase, err)
		}
		j.RunID = runID
		j.FileType = constants.ParseDocumentClass(fileType)
		j.Status = constants.JobStatus(status)
		if errMsg.Valid {
			j.ErrorMessage = &errMsg.String
		}
		j.StartedAt = parseTime(started)
		j.FinishedAt = parseNullTime(finished)
		out = append(out, j)
	}
	return out, rows.Err()
}

// EventCount counts the stored timeline events of a run.
func (s *Store) EventCount(ctx context.Context, runID uuid.UUID) (int, error) {
	q, args := s.builder().Select().Count().
		From(s.builder().Table("events")).
		Where(entsql.EQ("run_id", runID.String())).
		Query()
	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, q, args, rows); err != nil {
		return 0, fmt.Errorf("%w: count events: %v", common.ErrDatabase, err)
	}
	defer rows.Close()
	return entsql.ScanInt(rows)
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
