// Package renderer implements babylon's passive event-bus subscribers that
// turn the workflow's event stream into human-readable output: a colored
// terminal view, a plain append-only log (with an optional live tail-follow
// socket), or nothing at all.
//
// Grounded on the teacher's cmd/cobra_cli.go colored-output helpers and
// internal/output/cli_renderer_helpers.go (duration/preview formatting),
// generalized from direct println calls into a bus Subscriber.
package renderer

import (
	"fmt"
	"io"

	"babylon/internal/events"
	"babylon/internal/logging"
)

// Kind selects which renderer a run attaches, matching the CLI's
// --renderer {terminal,log,none} flag.
type Kind string

const (
	KindTerminal Kind = "terminal"
	KindLog      Kind = "log"
	KindNone     Kind = "none"
)

// Renderer is a bus subscriber that renders the workflow's event stream.
// Close releases any resources (an open log file, a tail-follow listener).
type Renderer interface {
	events.Subscriber
	Close() error
}

// Options configures the renderer a run attaches.
type Options struct {
	Kind Kind

	// Out is the terminal renderer's destination. Defaults to os.Stdout
	// when nil; callers typically pass it explicitly for testability.
	Out io.Writer

	// LogWriter is the log renderer's destination (typically an open
	// <gen>/run.txt file). Required when Kind is KindLog.
	LogWriter io.Writer

	// TailAddr, if non-empty, starts the log renderer's websocket
	// tail-follow listener on that address. Empty disables it: the log
	// renderer then only writes to LogWriter.
	TailAddr string

	Logger logging.Logger
}

// New constructs the renderer selected by opts.Kind.
func New(opts Options) (Renderer, error) {
	switch opts.Kind {
	case "", KindTerminal:
		return newTerminalRenderer(opts.Out), nil
	case KindLog:
		if opts.LogWriter == nil {
			return nil, fmt.Errorf("renderer: log renderer requires a LogWriter")
		}
		return newLogRenderer(opts.LogWriter, opts.TailAddr, opts.Logger)
	case KindNone:
		return noneRenderer{}, nil
	default:
		return nil, fmt.Errorf("renderer: unknown renderer kind %q", opts.Kind)
	}
}

// noneRenderer discards every event, for --renderer none.
type noneRenderer struct{}

func (noneRenderer) OnEvent(events.Event) {}
func (noneRenderer) Close() error         { return nil }
