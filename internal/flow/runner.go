package flow

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"donorkit/internal/platform"
)

// ErrFinished is returned by Runner.Resume after the end page was issued.
var ErrFinished = errors.New("flow: session finished")

// trackingPayload is donated when the session starts, before the first
// prompt, so an abandoned session still leaves a trace.
const trackingPayload = `[{ "message": "user entered script" }]`

// RunnerConfig configures a donation session spanning one or more platforms.
type RunnerConfig struct {
	SessionID  string
	Extractors []platform.Extractor
	ChunkRows  int
	Locale     string
	Logger     *zap.Logger
}

// Runner sequences one engine per platform through a session, renders the
// end page when the last platform terminates, and aggregates the commands
// every engine emits. One Runner per session; strict request/response
// alternation with the presenter.
type Runner struct {
	cfg      RunnerConfig
	index    int
	engine   *Engine
	commands []Command
	done     bool
}

// NewRunner creates a session runner. Start must be called before Resume.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Runner{cfg: cfg}
}

// SessionID returns the session identifier.
func (r *Runner) SessionID() string { return r.cfg.SessionID }

// Done reports whether the end page has been issued.
func (r *Runner) Done() bool { return r.done }

// Commands drains all commands emitted since the last call, in order.
func (r *Runner) Commands() []Command {
	r.collect()
	out := r.commands
	r.commands = nil
	return out
}

// Start emits the tracking donation and returns the first render request.
// With no extractors configured the session goes straight to the end page.
func (r *Runner) Start() *RenderRequest {
	r.commands = append(r.commands, DonateCommand{
		Key:  r.cfg.SessionID + "-tracking",
		JSON: trackingPayload,
	})
	return r.advance()
}

// Resume feeds the presenter's response to the active engine and returns the
// next render request. When an engine terminates, the next platform's file
// prompt follows; after the last platform, the end page.
func (r *Runner) Resume(ctx context.Context, p Payload) (*RenderRequest, error) {
	if r.done {
		return nil, ErrFinished
	}
	if r.engine == nil {
		return nil, ErrFinished
	}

	req, err := r.engine.Resume(ctx, p)
	if err != nil {
		return nil, err
	}
	if req != nil {
		return req, nil
	}

	// Engine terminated; its remaining commands must be collected before it
	// is replaced.
	r.collect()
	r.index++
	return r.advance(), nil
}

// advance activates the next platform engine, or the end page when no
// platforms remain.
func (r *Runner) advance() *RenderRequest {
	if r.index < len(r.cfg.Extractors) {
		r.engine = NewEngine(Config{
			SessionID: r.cfg.SessionID,
			Extractor: r.cfg.Extractors[r.index],
			ChunkRows: r.cfg.ChunkRows,
			Progress:  r.progress(),
			Locale:    r.cfg.Locale,
			Logger:    r.cfg.Logger,
		})
		return r.engine.CurrentRequest()
	}

	r.engine = nil
	r.done = true
	r.commands = append(r.commands, ExitCommand{Code: 0, Message: "success"})
	return &RenderRequest{Page: PageEnd, Progress: 100, Body: EndPage{}}
}

// progress is the percentage of platforms already handled.
func (r *Runner) progress() int {
	if len(r.cfg.Extractors) == 0 {
		return 100
	}
	return r.index * 100 / len(r.cfg.Extractors)
}

func (r *Runner) collect() {
	if r.engine != nil {
		r.commands = append(r.commands, r.engine.Commands()...)
	}
}
