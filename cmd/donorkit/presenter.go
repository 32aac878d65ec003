package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"donorkit/internal/flow"
	"donorkit/internal/store"
)

// maxPreviewRows caps how many rows of each consent table are printed.
const maxPreviewRows = 10

// presenter walks a donation session on a terminal: it renders each prompt,
// reads the operator's answer, and persists donate commands to the outbox.
type presenter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPresenter(in io.Reader, out io.Writer) *presenter {
	return &presenter{in: bufio.NewReader(in), out: out}
}

// Run drives the session to the end page. EOF on input aborts the current
// prompt with a skip.
func (p *presenter) Run(ctx context.Context, runner *flow.Runner, st store.Store) error {
	req := runner.Start()
	if err := p.persist(ctx, runner, st); err != nil {
		return err
	}

	for {
		if req.Page == flow.PageEnd {
			fmt.Fprintln(p.out)
			fmt.Fprintln(p.out, "Thank you. The session is complete.")
			return nil
		}

		payload, err := p.show(req)
		if err != nil {
			return err
		}

		next, err := runner.Resume(ctx, payload)
		if err != nil {
			return err
		}
		if err := p.persist(ctx, runner, st); err != nil {
			return err
		}
		req = next
	}
}

// persist drains the runner's commands into the outbox.
func (p *presenter) persist(ctx context.Context, runner *flow.Runner, st store.Store) error {
	for _, cmd := range runner.Commands() {
		switch c := cmd.(type) {
		case flow.DonateCommand:
			if _, err := st.SaveDonation(ctx, &store.Donation{Key: c.Key, Payload: c.JSON}); err != nil {
				return fmt.Errorf("saving donation %s: %w", c.Key, err)
			}
		case flow.ExitCommand:
			if c.Code != 0 {
				fmt.Fprintf(p.out, "Session ended: %s\n", c.Message)
			}
		}
	}
	return nil
}

// show renders a prompt and reads the operator's answer.
func (p *presenter) show(req *flow.RenderRequest) (flow.Payload, error) {
	fmt.Fprintln(p.out)
	if req.Platform != "" {
		fmt.Fprintf(p.out, "=== %s (%d%%) ===\n", req.Platform, req.Progress)
	}

	switch body := req.Body.(type) {
	case flow.FileInputPrompt:
		fmt.Fprintln(p.out, body.Description)
		fmt.Fprintf(p.out, "File path (empty to skip): ")
		line, err := p.readLine()
		if err != nil {
			return flow.VoidPayload{}, nil
		}
		if line == "" {
			return flow.VoidPayload{}, nil
		}
		return flow.StringPayload{Value: line}, nil

	case flow.ConfirmPrompt:
		fmt.Fprintln(p.out, body.Text)
		fmt.Fprintf(p.out, "[y] %s  [n] %s: ", body.OkLabel, body.CancelLabel)
		line, err := p.readLine()
		if err != nil {
			return flow.FalsePayload{}, nil
		}
		if strings.EqualFold(line, "y") {
			return flow.TruePayload{}, nil
		}
		return flow.FalsePayload{}, nil

	case flow.ConsentForm:
		for _, tbl := range body.Tables {
			p.printTable(tbl)
		}
		fmt.Fprintln(p.out, body.Question)
		fmt.Fprintf(p.out, "[y] %s  [n] decline: ", body.ButtonLabel)
		line, err := p.readLine()
		if err != nil || !strings.EqualFold(line, "y") {
			return flow.FalsePayload{}, nil
		}
		// Consent donates exactly what was shown.
		data, err := json.Marshal(body.Tables)
		if err != nil {
			return flow.FalsePayload{}, nil
		}
		return flow.JSONPayload{Value: data}, nil

	default:
		return flow.VoidPayload{}, nil
	}
}

func (p *presenter) printTable(tbl flow.ConsentFormTable) {
	fmt.Fprintf(p.out, "\n%s\n", tbl.Title)
	if tbl.Description != "" {
		fmt.Fprintln(p.out, tbl.Description)
	}
	if tbl.Table == nil {
		return
	}

	fmt.Fprintln(p.out, strings.Join(tbl.Table.Columns, " | "))
	for i, row := range tbl.Table.Rows {
		if i == maxPreviewRows {
			fmt.Fprintf(p.out, "... (%d more rows)\n", len(tbl.Table.Rows)-maxPreviewRows)
			break
		}
		fmt.Fprintln(p.out, strings.Join(row, " | "))
	}
}

func (p *presenter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && line == "" {
		return "", err
	}
	return line, nil
}
