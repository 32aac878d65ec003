package flow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"donorkit/internal/platform"
	"donorkit/internal/table"
)

// fakeExtractor is a scriptable platform extractor.
type fakeExtractor struct {
	name    string
	results []platform.Result
	err     error
	panics  bool
	calls   int
}

func (f *fakeExtractor) Name() string          { return f.name }
func (f *fakeExtractor) DisplayName() string   { return f.name }
func (f *fakeExtractor) AcceptedTypes() string { return "application/zip" }

func (f *fakeExtractor) Extract(ctx context.Context, path string) ([]platform.Result, error) {
	f.calls++
	if f.panics {
		panic("boom")
	}
	return f.results, f.err
}

func oneResult(rows int) []platform.Result {
	tbl := table.New("n")
	for i := 0; i < rows; i++ {
		tbl.AppendRow("x")
	}
	return []platform.Result{{ID: "fake_table", Title: "Fake", Table: tbl}}
}

func newTestEngine(f *fakeExtractor) *Engine {
	return NewEngine(Config{SessionID: "sess-1", Extractor: f})
}

func donateCommands(cmds []Command) []DonateCommand {
	var out []DonateCommand
	for _, c := range cmds {
		if d, ok := c.(DonateCommand); ok {
			out = append(out, d)
		}
	}
	return out
}

func TestEngineStartsAtFilePrompt(t *testing.T) {
	e := newTestEngine(&fakeExtractor{name: "fake"})

	if e.State() != StateAwaitingFile {
		t.Fatalf("initial state = %s, want %s", e.State(), StateAwaitingFile)
	}
	req := e.CurrentRequest()
	if req == nil || req.Page != PageFileInput {
		t.Fatalf("initial request = %+v, want file input", req)
	}
	if _, ok := req.Body.(FileInputPrompt); !ok {
		t.Fatalf("body = %T, want FileInputPrompt", req.Body)
	}
}

func TestEngineSkip(t *testing.T) {
	e := newTestEngine(&fakeExtractor{name: "fake"})

	req, err := e.Resume(context.Background(), VoidPayload{})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if req != nil {
		t.Fatalf("expected nil request on skip, got %+v", req)
	}
	if e.State() != StateSkipped {
		t.Fatalf("state = %s, want %s", e.State(), StateSkipped)
	}
	if cmds := e.Commands(); len(cmds) != 0 {
		t.Fatalf("skip emitted commands: %+v", cmds)
	}
}

// The engine dispatches on the payload discriminator only: a JSON payload at
// the file prompt is not a file, so it is a skip.
func TestEngineNonStringFilePayloadSkips(t *testing.T) {
	e := newTestEngine(&fakeExtractor{name: "fake", results: oneResult(1)})

	if _, err := e.Resume(context.Background(), JSONPayload{Value: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if e.State() != StateSkipped {
		t.Fatalf("state = %s, want %s", e.State(), StateSkipped)
	}
	if len(donateCommands(e.Commands())) != 0 {
		t.Fatal("donate command emitted outside AwaitingConsent")
	}
}

func TestEngineExtractionFailureRoutesToRetry(t *testing.T) {
	tests := []struct {
		name string
		f    *fakeExtractor
	}{
		{"invalid file", &fakeExtractor{name: "fake", err: platform.ErrInvalidFile}},
		{"no data", &fakeExtractor{name: "fake", err: platform.ErrNoData}},
		{"empty results", &fakeExtractor{name: "fake"}},
		{"panicking extractor", &fakeExtractor{name: "fake", panics: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(tt.f)

			req, err := e.Resume(context.Background(), StringPayload{Value: "/tmp/whatever.zip"})
			if err != nil {
				t.Fatalf("Resume: %v", err)
			}
			if e.State() != StateAwaitingRetry {
				t.Fatalf("state = %s, want %s", e.State(), StateAwaitingRetry)
			}
			if req == nil || req.Page != PageConfirm {
				t.Fatalf("request = %+v, want confirm prompt", req)
			}
		})
	}
}

func TestEngineRetryLoopIsUnbounded(t *testing.T) {
	f := &fakeExtractor{name: "fake", err: platform.ErrInvalidFile}
	e := newTestEngine(f)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := e.Resume(ctx, StringPayload{Value: "bad.zip"}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if e.State() != StateAwaitingRetry {
			t.Fatalf("submit %d: state = %s", i, e.State())
		}
		req, err := e.Resume(ctx, TruePayload{})
		if err != nil {
			t.Fatalf("retry %d: %v", i, err)
		}
		if e.State() != StateAwaitingFile || req.Page != PageFileInput {
			t.Fatalf("retry %d: state = %s, page = %s", i, e.State(), req.Page)
		}
	}
	if f.calls != 10 {
		t.Fatalf("extractor called %d times, want 10", f.calls)
	}
}

func TestEngineRetryDeclinedAborts(t *testing.T) {
	e := newTestEngine(&fakeExtractor{name: "fake", err: platform.ErrInvalidFile})
	ctx := context.Background()

	e.Resume(ctx, StringPayload{Value: "bad.zip"})
	req, err := e.Resume(ctx, FalsePayload{})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if req != nil || e.State() != StateAborted {
		t.Fatalf("state = %s, request = %+v, want aborted/nil", e.State(), req)
	}
}

func TestEngineConsentFormContents(t *testing.T) {
	e := newTestEngine(&fakeExtractor{name: "fake", results: oneResult(2)})

	req, err := e.Resume(context.Background(), StringPayload{Value: "export.zip"})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if e.State() != StateAwaitingConsent {
		t.Fatalf("state = %s, want %s", e.State(), StateAwaitingConsent)
	}

	form, ok := req.Body.(ConsentForm)
	if !ok {
		t.Fatalf("body = %T, want ConsentForm", req.Body)
	}
	if len(form.Tables) != 1 || form.Tables[0].ID != "fake_table" {
		t.Fatalf("consent tables = %+v", form.Tables)
	}
	if len(form.MetaTables) != 1 || form.MetaTables[0].ID != "log_messages" {
		t.Fatalf("meta tables = %+v", form.MetaTables)
	}
	if form.MetaTables[0].Table.Len() == 0 {
		t.Fatal("trace table is empty")
	}
}

func TestEngineConsentFormChunksLargeTables(t *testing.T) {
	e := NewEngine(Config{
		SessionID: "sess-1",
		Extractor: &fakeExtractor{name: "fake", results: oneResult(5)},
		ChunkRows: 2,
	})

	req, err := e.Resume(context.Background(), StringPayload{Value: "export.zip"})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	form := req.Body.(ConsentForm)
	if len(form.Tables) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(form.Tables))
	}
	wantIDs := []string{"fake_table_0", "fake_table_1", "fake_table_2"}
	for i, want := range wantIDs {
		if form.Tables[i].ID != want {
			t.Errorf("chunk %d id = %q, want %q", i, form.Tables[i].ID, want)
		}
	}
}

func TestEngineConsentDonates(t *testing.T) {
	e := newTestEngine(&fakeExtractor{name: "fake", results: oneResult(1)})
	ctx := context.Background()

	e.Resume(ctx, StringPayload{Value: "export.zip"})
	consent := json.RawMessage(`{"fake_table": [{"n": "x"}]}`)
	req, err := e.Resume(ctx, JSONPayload{Value: consent})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if req != nil || e.State() != StateDonated {
		t.Fatalf("state = %s, request = %+v, want donated/nil", e.State(), req)
	}

	donates := donateCommands(e.Commands())
	if len(donates) != 1 {
		t.Fatalf("expected 1 donate command, got %d", len(donates))
	}
	if donates[0].Key != "sess-1-fake" {
		t.Errorf("donate key = %q, want %q", donates[0].Key, "sess-1-fake")
	}
	if donates[0].JSON != string(consent) {
		t.Errorf("donate payload not forwarded verbatim: %q", donates[0].JSON)
	}
}

func TestEngineConsentDeclinedAbortsWithoutDonate(t *testing.T) {
	payloads := []Payload{FalsePayload{}, VoidPayload{}, TruePayload{}, StringPayload{Value: "x"}}
	for _, p := range payloads {
		t.Run(Kind(p), func(t *testing.T) {
			e := newTestEngine(&fakeExtractor{name: "fake", results: oneResult(1)})
			ctx := context.Background()

			e.Resume(ctx, StringPayload{Value: "export.zip"})
			req, err := e.Resume(ctx, p)
			if err != nil {
				t.Fatalf("Resume: %v", err)
			}
			if req != nil || e.State() != StateAborted {
				t.Fatalf("state = %s, want aborted", e.State())
			}
			if len(donateCommands(e.Commands())) != 0 {
				t.Fatal("donate command emitted on declined consent")
			}
		})
	}
}

func TestEngineTerminalStatesAreFinal(t *testing.T) {
	for _, terminalVia := range []Payload{VoidPayload{}} {
		e := newTestEngine(&fakeExtractor{name: "fake"})
		ctx := context.Background()

		if _, err := e.Resume(ctx, terminalVia); err != nil {
			t.Fatalf("Resume: %v", err)
		}
		state := e.State()
		if !state.Terminal() {
			t.Fatalf("state %s not terminal", state)
		}
		if _, err := e.Resume(ctx, StringPayload{Value: "late.zip"}); !errors.Is(err, ErrTerminated) {
			t.Fatalf("expected ErrTerminated, got %v", err)
		}
		if e.State() != state {
			t.Fatalf("terminal state changed from %s to %s", state, e.State())
		}
	}
}

func TestEngineTraceRecordsTransitions(t *testing.T) {
	e := newTestEngine(&fakeExtractor{name: "fake", err: platform.ErrInvalidFile})
	ctx := context.Background()

	e.Resume(ctx, StringPayload{Value: "bad.zip"})
	e.Resume(ctx, FalsePayload{})

	entries := e.Trace().Entries()
	if len(entries) < 3 {
		t.Fatalf("expected trace entries for each transition, got %d: %+v", len(entries), entries)
	}
	tbl := e.Trace().Table()
	if tbl.Len() != len(entries) {
		t.Fatalf("trace table has %d rows, want %d", tbl.Len(), len(entries))
	}
}
