package platform

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"donorkit/internal/archive"
	"donorkit/internal/denest"
	"donorkit/internal/table"
)

// chatgptKnownFiles identifies a ChatGPT export zip. One match is enough;
// exports vary by account age and data settings.
var chatgptKnownFiles = []string{
	"chat.html",
	"conversations.json",
	"message_feedback.json",
	"model_comparisons.json",
	"user.json",
}

// ChatGPT extracts the conversation table from a ChatGPT data export zip.
//
// Conversation turns in conversations.json nest the same fields at depths
// that differ per turn kind and export version, so every turn is flattened
// and fields are resolved by fragment instead of exact path.
type ChatGPT struct {
	// Location is the zone create_time epoch seconds are rendered in.
	Location *time.Location
	Logger   *zap.Logger
}

// NewChatGPT creates a ChatGPT extractor rendering times in the local zone.
func NewChatGPT() *ChatGPT {
	return &ChatGPT{Location: time.Local}
}

func init() {
	DefaultRegistry.Register(NewChatGPT())
}

func (c *ChatGPT) Name() string        { return "chatgpt" }
func (c *ChatGPT) DisplayName() string { return "ChatGPT" }

func (c *ChatGPT) AcceptedTypes() string { return "application/zip" }

func (c *ChatGPT) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *ChatGPT) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// Validate checks that the zip looks like a ChatGPT export by its known
// entry names.
func (c *ChatGPT) Validate(path string) error {
	names, err := archive.EntryNames(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	for _, name := range names {
		for _, known := range chatgptKnownFiles {
			if name == known {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: no known ChatGPT export files in %s", ErrInvalidFile, path)
}

// Extract produces the conversations table.
func (c *ChatGPT) Extract(ctx context.Context, path string) ([]Result, error) {
	if err := c.Validate(path); err != nil {
		return nil, err
	}

	doc, err := archive.JSONFromZip(path, "conversations.json")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	conversations, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: conversations.json is not a list", ErrInvalidFile)
	}

	tbl := table.New("conversation title", "role", "message", "model", "time")
	for _, conv := range conversations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.appendConversation(tbl, conv)
	}
	if tbl.Len() == 0 {
		return nil, fmt.Errorf("%w: no conversation turns in %s", ErrNoData, path)
	}

	return []Result{{
		ID:          "chatgpt_conversations",
		Title:       "Conversations",
		Table:       tbl,
		Description: "The messages you and ChatGPT exchanged, one row per turn.",
	}}, nil
}

// appendConversation adds one conversation's visible turns. A fault in one
// conversation drops only that conversation.
func (c *ChatGPT) appendConversation(tbl *table.Table, conv any) {
	defer func() {
		if r := recover(); r != nil {
			c.logger().Warn("chatgpt conversation fault", zap.Any("cause", r))
		}
	}()

	m, ok := conv.(map[string]any)
	if !ok {
		return
	}
	title, _ := m["title"].(string)
	mapping, ok := m["mapping"].(map[string]any)
	if !ok {
		return
	}

	// Mapping keys are opaque node IDs; sorted order keeps output stable.
	ids := make([]string, 0, len(mapping))
	for id := range mapping {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		flat := denest.Flatten(mapping[id])
		for _, key := range flat.Collisions() {
			c.logger().Debug("chatgpt flatten collision", zap.String("key", key))
		}

		if denest.FindOne(flat, "is_visually_hidden_from_conversation") == "True" {
			continue
		}

		role := denest.FindOne(flat, "role")
		message := strings.Join(denest.FindAll(flat, "part"), "")
		model := denest.FindOne(flat, "-model_slug")
		created := c.formatEpoch(denest.FindOne(flat, "create_time"))

		tbl.AppendRow(title, role, message, model, created)
	}
}

// formatEpoch converts an epoch-seconds string to a zoned wall-clock string.
// Unparsable input is passed through untouched, matching how absent fields
// stay empty instead of failing the turn.
func (c *ChatGPT) formatEpoch(epoch string) string {
	f, err := strconv.ParseFloat(epoch, 64)
	if err != nil {
		return epoch
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).In(c.location()).Format(naiveTimeFormat)
}
