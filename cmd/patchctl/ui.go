package main

import (
	"fmt"
	"os"

	"github.com/sanbornm/ttr-patcher/internal/menu"
	"github.com/sanbornm/ttr-patcher/internal/planner"
)

// termUI is the default driver.UISink: it routes install-dir creation
// consent to internal/menu.ConfirmYesNo on stdin/stdout and prints one
// line per action lifecycle event. It deliberately does not print
// every byte-progress callback to stdout to avoid drowning a real
// terminal in the 64 KiB chunk cadence of internal/hasher/internal/bzstream.
type termUI struct{}

func (termUI) ConfirmCreateDir(path string) bool {
	return menu.ConfirmYesNo(os.Stdout, os.Stdin, fmt.Sprintf("%s does not exist. Create it?", path))
}

func (termUI) ActionStarted(filename string, kind planner.ActionKind) {
	fmt.Printf("%s: %s\n", kind, filename)
}

func (termUI) BytesProgress(filename, phase string, done, total int64) {
	// Intentionally quiet; a real terminal UI would redraw a progress
	// bar here keyed by filename+phase.
}

func (termUI) ActionDone(filename string, err error) {
	if err != nil {
		fmt.Printf("failed: %s: %v\n", filename, err)
		return
	}
	fmt.Printf("done: %s\n", filename)
}
