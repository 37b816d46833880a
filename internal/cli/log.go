// Package cli implements the noirforge command-line interface.
//
// The CLI resolves Noir project dependencies (local paths and GitHub or
// GitLab release archives), compiles contract and bin projects through a
// pluggable compiler backend, and manages the download cache. It is built
// on cobra and logs through charmbracelet/log.
//
// # Commands
//
// The main commands are:
//   - compile: Compile a project and write <outdir>/<name>.json
//   - resolve: Resolve dependencies and list the resolved packages
//   - graph: Render the resolved dependency graph as DOT or SVG
//   - cache: Inspect or clear the archive and library caches
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
//
// # Example
//
//	c := cli.New(os.Stderr, cli.LogInfo)
//	if err := c.RootCommand().ExecuteContext(ctx); err != nil {
//	    os.Exit(1)
//	}
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a logger writing to w at level, with "HH:MM:SS.ms"
// timestamps.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs how long a step took. Not safe for concurrent use.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time rounded to the millisecond, e.g.
// "resolved 4 packages elapsed=1.234s".
func (p *progress) done(msg string) {
	p.logger.Info(msg, "elapsed", time.Since(p.start).Round(time.Millisecond))
}

type ctxKey struct{}

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// loggerFromContext returns the logger attached by withLogger, or
// log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
