package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"donorkit/internal/flow"
	"donorkit/internal/platform"
	"donorkit/internal/store"
	"donorkit/internal/table"
)

type fixedExtractor struct{}

func (fixedExtractor) Name() string          { return "fixed" }
func (fixedExtractor) DisplayName() string   { return "Fixed" }
func (fixedExtractor) AcceptedTypes() string { return "application/zip" }

func (fixedExtractor) Extract(ctx context.Context, path string) ([]platform.Result, error) {
	tbl := table.New("Item", "Count")
	_ = tbl.AppendRow("videos", "3")
	return []platform.Result{{ID: "fixed_summary", Title: "Summary", Table: tbl}}, nil
}

func runScripted(t *testing.T, input string) (store.Store, string) {
	t.Helper()

	st, err := store.NewStore(store.Config{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	runner := flow.NewRunner(flow.RunnerConfig{
		SessionID:  "sess-1",
		Extractors: []platform.Extractor{fixedExtractor{}},
		ChunkRows:  100,
		Locale:     "en",
	})

	var out bytes.Buffer
	p := newPresenter(strings.NewReader(input), &out)
	if err := p.Run(context.Background(), runner, st); err != nil {
		t.Fatalf("presenter run: %v", err)
	}
	return st, out.String()
}

func TestPresenterDonates(t *testing.T) {
	st, out := runScripted(t, "/tmp/export.zip\ny\n")

	if !strings.Contains(out, "Do you want to donate the data above?") {
		t.Error("consent question not shown")
	}
	if !strings.Contains(out, "videos | 3") {
		t.Error("extracted table not shown")
	}
	if !strings.Contains(out, "The session is complete.") {
		t.Error("end page not shown")
	}

	donations, err := st.ListDonations(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("listing donations: %v", err)
	}
	if len(donations) != 2 {
		t.Fatalf("expected tracking + data donations, got %d", len(donations))
	}
	if donations[0].Key != "sess-1-tracking" {
		t.Errorf("first donation key = %q", donations[0].Key)
	}
	if donations[1].Key != "sess-1-fixed" {
		t.Errorf("second donation key = %q", donations[1].Key)
	}
}

func TestPresenterDeclinedConsent(t *testing.T) {
	st, _ := runScripted(t, "/tmp/export.zip\nn\n")

	donations, err := st.ListDonations(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("listing donations: %v", err)
	}
	if len(donations) != 1 {
		t.Fatalf("expected only tracking donation, got %d", len(donations))
	}
}

func TestPresenterSkip(t *testing.T) {
	st, out := runScripted(t, "\n")

	if !strings.Contains(out, "The session is complete.") {
		t.Error("end page not shown after skip")
	}

	donations, err := st.ListDonations(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("listing donations: %v", err)
	}
	if len(donations) != 1 {
		t.Fatalf("expected only tracking donation, got %d", len(donations))
	}
}
