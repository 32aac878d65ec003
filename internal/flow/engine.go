// Package flow implements the cooperative state machine that sequences one
// data donation: file submission, validation, extraction, retry, consent,
// donation.
//
// The engine suspends whenever it needs operator input. CurrentRequest
// returns the page to show; Resume consumes exactly one typed payload and
// either moves to the next suspension point or terminates. The host loop
// alternates strictly between the two, so every transition is independently
// testable by feeding canned payload sequences.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"donorkit/internal/platform"
)

// State is the engine's position in the donation flow.
type State string

const (
	StateAwaitingFile    State = "awaiting_file"
	StateValidating      State = "validating"
	StateExtracting      State = "extracting"
	StateAwaitingRetry   State = "awaiting_retry_decision"
	StateAwaitingConsent State = "awaiting_consent"
	StateDonated         State = "donated"
	StateSkipped         State = "skipped"
	StateAborted         State = "aborted"
)

// Terminal reports whether no further transition can leave the state.
func (s State) Terminal() bool {
	return s == StateDonated || s == StateSkipped || s == StateAborted
}

// ErrTerminated is returned by Resume once the engine is in a terminal
// state. Terminal states are never left.
var ErrTerminated = errors.New("flow: engine already terminated")

// DefaultChunkRows caps consent form table chunks.
const DefaultChunkRows = 5000

// Config configures one engine. SessionID and Extractor are required.
type Config struct {
	SessionID string
	Extractor platform.Extractor
	ChunkRows int
	Progress  int
	Locale    string
	Logger    *zap.Logger
}

// Engine drives one platform's donation within a session. Create one per
// platform per session and discard it at termination; engines own all their
// data exclusively and need no synchronization.
type Engine struct {
	sessionID string
	extractor platform.Extractor
	chunkRows int
	progress  int
	text      promptStrings
	logger    *zap.Logger

	state    State
	current  *RenderRequest
	trace    Trace
	commands []Command
	results  []platform.Result
}

// NewEngine creates an engine suspended at the file prompt.
func NewEngine(cfg Config) *Engine {
	chunkRows := cfg.ChunkRows
	if chunkRows <= 0 {
		chunkRows = DefaultChunkRows
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		sessionID: cfg.SessionID,
		extractor: cfg.Extractor,
		chunkRows: chunkRows,
		progress:  cfg.Progress,
		text:      localeStrings(cfg.Locale),
		logger:    logger,
	}
	e.toAwaitingFile()
	return e
}

// State returns the current state.
func (e *Engine) State() State { return e.state }

// Platform returns the extractor's platform name.
func (e *Engine) Platform() string { return e.extractor.Name() }

// Trace returns the session trace accumulated so far.
func (e *Engine) Trace() *Trace { return &e.trace }

// CurrentRequest returns the pending render request, or nil once the engine
// has terminated.
func (e *Engine) CurrentRequest() *RenderRequest {
	return e.current
}

// Commands drains the commands emitted since the last call, in order.
func (e *Engine) Commands() []Command {
	out := e.commands
	e.commands = nil
	return out
}

// Resume feeds the presenter's response for the current request and advances
// to the next suspension point or a terminal state. It returns the next
// render request, nil on termination. Extraction problems route to the retry
// prompt and never surface as errors; the only error is ErrTerminated.
func (e *Engine) Resume(ctx context.Context, p Payload) (*RenderRequest, error) {
	if e.state.Terminal() {
		return nil, ErrTerminated
	}

	switch e.state {
	case StateAwaitingFile:
		file, ok := p.(StringPayload)
		if !ok {
			e.trace.Log("%s: skip to next step", e.extractor.DisplayName())
			e.terminate(StateSkipped)
			return nil, nil
		}
		e.extract(ctx, file.Value)

	case StateAwaitingRetry:
		if _, ok := p.(TruePayload); ok {
			e.trace.Log("%s: operator chose to retry", e.extractor.DisplayName())
			e.toAwaitingFile()
		} else {
			e.trace.Log("%s: operator declined retry", e.extractor.DisplayName())
			e.terminate(StateAborted)
		}

	case StateAwaitingConsent:
		consent, ok := p.(JSONPayload)
		if !ok {
			e.trace.Log("%s: consent declined", e.extractor.DisplayName())
			e.terminate(StateAborted)
			break
		}
		e.trace.Log("%s: donate consent data", e.extractor.DisplayName())
		e.commands = append(e.commands, DonateCommand{
			Key:  e.sessionID + "-" + e.extractor.Name(),
			JSON: string(consent.Value),
		})
		e.terminate(StateDonated)

	default:
		// Validating/Extracting are transient; Resume is never called there.
		return nil, fmt.Errorf("flow: resume in unexpected state %s", e.state)
	}

	return e.current, nil
}

// extract runs validation and extraction for a submitted file. Failures of
// any kind are caught here and routed to the retry prompt; they never leave
// the engine.
func (e *Engine) extract(ctx context.Context, path string) {
	e.state = StateValidating
	e.trace.Log("%s: extracting file", e.extractor.DisplayName())
	e.state = StateExtracting

	results, err := e.safeExtract(ctx, path)
	switch {
	case err != nil:
		e.trace.Log("%s: invalid file detected, prompting for retry", e.extractor.DisplayName())
		e.logger.Info("extraction failed",
			zap.String("session", e.sessionID),
			zap.String("platform", e.extractor.Name()),
			zap.Error(err))
		e.toAwaitingRetry()
	case len(results) == 0:
		e.trace.Log("%s: no extractable data, prompting for retry", e.extractor.DisplayName())
		e.toAwaitingRetry()
	default:
		e.trace.Log("%s: extraction successful, go to consent form", e.extractor.DisplayName())
		e.results = results
		e.toAwaitingConsent()
	}
}

// safeExtract shields the engine from a panicking extractor.
func (e *Engine) safeExtract(ctx context.Context, path string) (results []platform.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = fmt.Errorf("extractor panic: %v", r)
		}
	}()
	return e.extractor.Extract(ctx, path)
}

func (e *Engine) toAwaitingFile() {
	e.state = StateAwaitingFile
	e.current = e.render(FileInputPrompt{
		Description:   e.text.forPlatform(e.text.fileDescription, e.extractor.DisplayName()),
		AcceptedTypes: e.extractor.AcceptedTypes(),
	})
}

func (e *Engine) toAwaitingRetry() {
	e.state = StateAwaitingRetry
	e.current = e.render(ConfirmPrompt{
		Text:        e.text.forPlatform(e.text.retryText, e.extractor.DisplayName()),
		OkLabel:     e.text.retryOk,
		CancelLabel: e.text.retryCancel,
	})
}

func (e *Engine) toAwaitingConsent() {
	e.trace.Log("%s: prompt consent", e.extractor.DisplayName())
	e.state = StateAwaitingConsent
	e.current = e.render(e.consentForm())
}

func (e *Engine) terminate(s State) {
	e.state = s
	e.current = nil
	e.trace.Log("%s: terminated as %s", e.extractor.DisplayName(), s)
}

func (e *Engine) render(body Body) *RenderRequest {
	return &RenderRequest{
		Page:     body.pageKind(),
		Platform: e.extractor.DisplayName(),
		Progress: e.progress,
		Body:     body,
	}
}

// consentForm bundles the extracted tables with the session trace. Large
// tables are split into chunks with indexed IDs.
func (e *Engine) consentForm() ConsentForm {
	var tables []ConsentFormTable
	for _, res := range e.results {
		chunks := res.Table.Split(e.chunkRows)
		for i, chunk := range chunks {
			id := res.ID
			if len(chunks) > 1 {
				id = res.ID + "_" + strconv.Itoa(i)
			}
			tables = append(tables, ConsentFormTable{
				ID:          id,
				Title:       res.Title,
				Table:       chunk,
				Description: res.Description,
				Charts:      res.Charts,
			})
		}
	}

	return ConsentForm{
		Tables: tables,
		MetaTables: []ConsentFormTable{{
			ID:    "log_messages",
			Title: "Log messages",
			Table: e.trace.Table(),
		}},
		Question:    e.text.consentQuestion,
		ButtonLabel: e.text.consentButton,
	}
}
