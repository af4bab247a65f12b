package main

import (
	"os"

	"github.com/joseph-ayodele/clinical-timeline/cmd/clinical-timeline/commands"
	"github.com/joseph-ayodele/clinical-timeline/cmd/clinical-timeline/ui"
)

func main() {
	if err := commands.Execute(); err != nil {
		ui.Error("%v", err)
		os.Exit(1)
	}
}
