package platform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const tiktokFixture = `{
	"Profile": {"Profile Information": {"ProfileMap": {"userName": "donor", "likesReceived": "12"}}},
	"Activity": {
		"Follower List": {"FansList": [{"Date": "2023-06-01 10:00:00"}]},
		"Like List": {"ItemFavoriteList": [{"Date": "2023-06-01 10:05:00"}]},
		"Video Browsing History": {"VideoList": [
			{"Date": "2023-06-01 10:01:00"},
			{"Date": "2023-06-01 10:02:00"},
			{"Date": "2023-06-01 11:30:00"}
		]},
		"Favorite Videos": {"FavoriteVideoList": [{"Date": "2023-06-01 09:00:00", "Link": "https://tiktok.com/v/1"}]}
	},
	"Video": {"Videos": {"VideoList": [{"Date": "2023-06-01 10:03:00", "Likes": "5"}]}},
	"Comment": {"Comments": {"CommentsList": [
		{"Date": "2023-06-01 12:00:00"},
		{"Date": "2020-01-01 00:00:00"}
	]}},
	"Direct Messages": {"Chat History": {"ChatHistory": {
		"Chat with alice": [
			{"Date": "2023-06-01 10:00:00", "From": "alice"},
			{"Date": "2023-06-01 10:01:00", "From": "donor"}
		]
	}}}
}`

func writeTikTokFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "user_data.json")
	if err := os.WriteFile(path, []byte(tiktokFixture), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func extractFixture(t *testing.T) map[string]Result {
	t.Helper()
	results, err := NewTikTok().Extract(context.Background(), writeTikTokFixture(t))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	byID := make(map[string]Result, len(results))
	for _, r := range results {
		byID[r.ID] = r
	}
	return byID
}

func TestTikTokSummary(t *testing.T) {
	res, ok := extractFixture(t)["tiktok_summary"]
	if !ok {
		t.Fatal("tiktok_summary missing")
	}

	want := [][]string{
		{"Followers", "1"},
		{"Following", "0"},
		{"Likes received", "12"},
		{"Videos posted", "1"},
		{"Likes given", "1"},
		{"Comments posted", "1"}, // the 2020 comment falls outside the window
		{"Messages sent", "1"},
		{"Messages received", "1"},
		{"Videos watched", "3"},
	}
	if diff := cmp.Diff(want, res.Table.Rows); diff != "" {
		t.Errorf("summary rows mismatch (-want +got):\n%s", diff)
	}
}

func TestTikTokSessions(t *testing.T) {
	res, ok := extractFixture(t)["tiktok_session_info"]
	if !ok {
		t.Fatal("tiktok_session_info missing")
	}

	// Timestamps 10:01..10:03 form one session; 11:30 and 12:00 stand alone.
	want := [][]string{
		{"2023-06-01 10:01", "2.00"},
		{"2023-06-01 11:30", "0.00"},
		{"2023-06-01 12:00", "0.00"},
	}
	if diff := cmp.Diff(want, res.Table.Rows); diff != "" {
		t.Errorf("session rows mismatch (-want +got):\n%s", diff)
	}
}

func TestTikTokDirectMessages(t *testing.T) {
	res, ok := extractFixture(t)["tiktok_direct_messages"]
	if !ok {
		t.Fatal("tiktok_direct_messages missing")
	}

	// The donor is always anonymous ID 1, other contacts count up from 2.
	want := [][]string{
		{"2", "2023-06-01 10:00"},
		{"1", "2023-06-01 10:01"},
	}
	if diff := cmp.Diff(want, res.Table.Rows); diff != "" {
		t.Errorf("direct message rows mismatch (-want +got):\n%s", diff)
	}
}

func TestTikTokVideosViewed(t *testing.T) {
	res, ok := extractFixture(t)["tiktok_videos_viewed"]
	if !ok {
		t.Fatal("tiktok_videos_viewed missing")
	}

	want := [][]string{
		{"2023-06-01 10:00:00", "10-11", "2"},
		{"2023-06-01 11:00:00", "11-12", "1"},
	}
	if diff := cmp.Diff(want, res.Table.Rows); diff != "" {
		t.Errorf("videos viewed rows mismatch (-want +got):\n%s", diff)
	}
}

func TestTikTokCommentsAndLikes(t *testing.T) {
	res, ok := extractFixture(t)["tiktok_comments_and_likes"]
	if !ok {
		t.Fatal("tiktok_comments_and_likes missing")
	}

	want := [][]string{
		{"2023-06-01 10:00:00", "10-11", "0", "1"},
		{"2023-06-01 12:00:00", "12-13", "1", "0"},
	}
	if diff := cmp.Diff(want, res.Table.Rows); diff != "" {
		t.Errorf("comments and likes rows mismatch (-want +got):\n%s", diff)
	}
}

func TestTikTokVideoPosts(t *testing.T) {
	res, ok := extractFixture(t)["tiktok_posts"]
	if !ok {
		t.Fatal("tiktok_posts missing")
	}

	want := [][]string{{"2023-06-01", "10-11", "1", "5"}}
	if diff := cmp.Diff(want, res.Table.Rows); diff != "" {
		t.Errorf("video post rows mismatch (-want +got):\n%s", diff)
	}
}

func TestTikTokCommentActivityUnfiltered(t *testing.T) {
	res, ok := extractFixture(t)["tiktok_comment_activity"]
	if !ok {
		t.Fatal("tiktok_comment_activity missing")
	}
	// Comment activity mirrors the raw export, including out-of-window rows.
	if res.Table.Len() != 2 {
		t.Fatalf("expected 2 comment rows, got %d", res.Table.Len())
	}
}

func TestTikTokVideosLiked(t *testing.T) {
	res, ok := extractFixture(t)["tiktok_videos_liked"]
	if !ok {
		t.Fatal("tiktok_videos_liked missing")
	}

	want := [][]string{{"2023-06-01 09:00", "https://tiktok.com/v/1"}}
	if diff := cmp.Diff(want, res.Table.Rows); diff != "" {
		t.Errorf("videos liked rows mismatch (-want +got):\n%s", diff)
	}
}

func TestTikTokInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.bin")
	if err := os.WriteFile(path, []byte("not an export"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	_, err := NewTikTok().Extract(context.Background(), path)
	if !errors.Is(err, ErrInvalidFile) {
		t.Fatalf("expected ErrInvalidFile, got %v", err)
	}
}

func TestTikTokMissingProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.json")
	if err := os.WriteFile(path, []byte(`{"something": "else"}`), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	_, err := NewTikTok().Extract(context.Background(), path)
	if !errors.Is(err, ErrInvalidFile) {
		t.Fatalf("expected ErrInvalidFile, got %v", err)
	}
}

func TestRegistryDefaults(t *testing.T) {
	if DefaultRegistry.Get("tiktok") == nil {
		t.Error("tiktok extractor not registered")
	}
	if DefaultRegistry.Get("chatgpt") == nil {
		t.Error("chatgpt extractor not registered")
	}
	list := DefaultRegistry.List()
	if len(list) < 2 {
		t.Fatalf("expected at least 2 extractors, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Name() > list[i].Name() {
			t.Errorf("List not sorted: %s after %s", list[i].Name(), list[i-1].Name())
		}
	}
}
