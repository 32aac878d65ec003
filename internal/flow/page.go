package flow

import (
	"donorkit/internal/platform"
	"donorkit/internal/table"
)

// PageKind discriminates render request bodies on the wire.
type PageKind string

const (
	PageFileInput   PageKind = "file_input"
	PageConfirm     PageKind = "confirm"
	PageConsentForm PageKind = "consent_form"
	PageEnd         PageKind = "end"
)

// RenderRequest describes the page the presenter should show next, plus the
// session's progress through the whole donation flow.
type RenderRequest struct {
	Page     PageKind `json:"page_kind"`
	Platform string   `json:"platform,omitempty"`
	Progress int      `json:"progress"`
	Body     Body     `json:"body"`
}

// Body is one of FileInputPrompt, ConfirmPrompt, ConsentForm, EndPage.
type Body interface {
	pageKind() PageKind
}

// FileInputPrompt asks the operator to choose an export file.
type FileInputPrompt struct {
	Description   string `json:"description"`
	AcceptedTypes string `json:"accepted_types"`
}

// ConfirmPrompt asks a yes/no question, typically whether to retry.
type ConfirmPrompt struct {
	Text        string `json:"text"`
	OkLabel     string `json:"ok_label"`
	CancelLabel string `json:"cancel_label"`
}

// ConsentForm presents the extracted tables and asks for donation consent.
type ConsentForm struct {
	Tables      []ConsentFormTable `json:"tables"`
	MetaTables  []ConsentFormTable `json:"meta_tables"`
	Description string             `json:"description,omitempty"`
	Question    string             `json:"question,omitempty"`
	ButtonLabel string             `json:"button_label,omitempty"`
}

// ConsentFormTable is one table shown on the consent form.
type ConsentFormTable struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Table       *table.Table     `json:"table"`
	Description string           `json:"description,omitempty"`
	Charts      []platform.Chart `json:"charts,omitempty"`
}

// EndPage closes the flow.
type EndPage struct{}

func (FileInputPrompt) pageKind() PageKind { return PageFileInput }
func (ConfirmPrompt) pageKind() PageKind   { return PageConfirm }
func (ConsentForm) pageKind() PageKind     { return PageConsentForm }
func (EndPage) pageKind() PageKind         { return PageEnd }
