package platform

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"donorkit/internal/archive"
	"donorkit/internal/table"
	"donorkit/internal/timeline"
)

// naiveTimeFormat is the local-format timestamp TikTok exports carry. The
// strings have no zone; they are parsed as-is and never converted.
const naiveTimeFormat = "2006-01-02 15:04:05"

// Default analysis window. Items outside it are excluded everywhere except
// the message and comment activity tables, which mirror the raw export.
var (
	defaultFilterStart = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	defaultFilterEnd   = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
)

// TikTok extracts activity tables from a TikTok personal data export, which
// is a single user_data.json either bare or inside a zip.
type TikTok struct {
	FilterStart time.Time
	FilterEnd   time.Time
	Inactivity  time.Duration
	Logger      *zap.Logger
}

// NewTikTok creates a TikTok extractor with the default analysis window and
// inactivity threshold.
func NewTikTok() *TikTok {
	return &TikTok{
		FilterStart: defaultFilterStart,
		FilterEnd:   defaultFilterEnd,
		Inactivity:  timeline.DefaultInactivity,
	}
}

func init() {
	DefaultRegistry.Register(NewTikTok())
}

func (t *TikTok) Name() string        { return "tiktok" }
func (t *TikTok) DisplayName() string { return "TikTok" }

func (t *TikTok) AcceptedTypes() string {
	return "application/zip, text/plain, application/json"
}

func (t *TikTok) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}

// Extract decodes the export and runs every table extractor over it. A fault
// inside one table extractor drops only that table.
func (t *TikTok) Extract(ctx context.Context, path string) ([]Result, error) {
	docs, err := archive.JSONDocuments(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	var data map[string]any
	for _, doc := range docs {
		m, ok := doc.(map[string]any)
		if !ok {
			continue
		}
		if userName(m) != "" {
			data = m
			break
		}
	}
	if data == nil {
		return nil, fmt.Errorf("%w: no TikTok profile found in %s", ErrInvalidFile, path)
	}

	extractors := []func(map[string]any) *Result{
		t.extractSummary,
		t.extractVideoPosts,
		t.extractCommentsAndLikes,
		t.extractVideosViewed,
		t.extractSessionInfo,
		t.extractDirectMessages,
		t.extractCommentActivity,
		t.extractVideosLiked,
	}

	var results []Result
	for _, extract := range extractors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if res := t.safely(data, extract); res != nil {
			results = append(results, *res)
		}
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, path)
	}
	return results, nil
}

// safely runs one table extractor, turning a panic into a dropped table so
// sibling tables still extract.
func (t *TikTok) safely(data map[string]any, fn func(map[string]any) *Result) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			t.logger().Warn("tiktok table extraction fault", zap.Any("cause", r))
			res = nil
		}
	}()
	return fn(data)
}

// --- export navigation ---

func getIn(data any, path ...string) any {
	for _, key := range path {
		m, ok := data.(map[string]any)
		if !ok {
			return nil
		}
		data, ok = m[key]
		if !ok {
			return nil
		}
	}
	return data
}

func getList(data any, path ...string) []any {
	v, _ := getIn(data, path...).([]any)
	return v
}

func getMap(data any, path ...string) map[string]any {
	v, _ := getIn(data, path...).(map[string]any)
	return v
}

func getString(data any, path ...string) string {
	v, _ := getIn(data, path...).(string)
	return v
}

// castNumber reads a numeric field that exports store as a number, a numeric
// string, or the literal string "None".
func castNumber(data any, path ...string) int {
	switch v := getIn(data, path...).(type) {
	case float64:
		return int(v)
	case string:
		if v == "None" || v == "" {
			return 0
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func userName(data map[string]any) string {
	return getString(data, "Profile", "Profile Information", "ProfileMap", "userName")
}

func chatHistory(data map[string]any) map[string]any {
	return getMap(data, "Direct Messages", "Chat History", "ChatHistory")
}

// flattenChatHistory concatenates per-contact message lists. Contacts are
// visited in sorted order so anonymous IDs are stable across runs.
func flattenChatHistory(history map[string]any) []any {
	contacts := make([]string, 0, len(history))
	for c := range history {
		contacts = append(contacts, c)
	}
	sort.Strings(contacts)

	var out []any
	for _, c := range contacts {
		if msgs, ok := history[c].([]any); ok {
			out = append(out, msgs...)
		}
	}
	return out
}

// itemDate parses an item's naive "Date" field.
func itemDate(item any) (time.Time, bool) {
	m, ok := item.(map[string]any)
	if !ok {
		return time.Time{}, false
	}
	s, ok := m["Date"].(string)
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(naiveTimeFormat, s)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// filterByDate keeps items whose Date falls inside the analysis window and
// returns their parsed timestamps alongside. Items with missing or
// unparsable dates are dropped, not fatal.
func (t *TikTok) filterByDate(items []any) ([]time.Time, []any) {
	var stamps []time.Time
	var kept []any
	for _, item := range items {
		ts, ok := itemDate(item)
		if !ok {
			continue
		}
		if ts.Before(t.FilterStart) || ts.After(t.FilterEnd) {
			continue
		}
		stamps = append(stamps, ts)
		kept = append(kept, item)
	}
	return stamps, kept
}

func (t *TikTok) filteredCount(data map[string]any, path ...string) int {
	stamps, _ := t.filterByDate(getList(data, path...))
	return len(stamps)
}

// --- tables ---

func (t *TikTok) extractSummary(data map[string]any) *Result {
	user := userName(data)
	_, messages := t.filterByDate(flattenChatHistory(chatHistory(data)))
	sent, received := 0, 0
	for _, item := range messages {
		m, _ := item.(map[string]any)
		if m == nil {
			continue
		}
		if m["From"] == user {
			sent++
		} else {
			received++
		}
	}

	rows := []struct {
		description string
		number      int
	}{
		{"Followers", t.filteredCount(data, "Activity", "Follower List", "FansList")},
		{"Following", t.filteredCount(data, "Activity", "Following List", "Following")},
		{"Likes received", castNumber(data, "Profile", "Profile Information", "ProfileMap", "likesReceived")},
		{"Videos posted", t.filteredCount(data, "Video", "Videos", "VideoList")},
		{"Likes given", t.filteredCount(data, "Activity", "Like List", "ItemFavoriteList")},
		{"Comments posted", t.filteredCount(data, "Comment", "Comments", "CommentsList")},
		{"Messages sent", sent},
		{"Messages received", received},
		{"Videos watched", t.filteredCount(data, "Activity", "Video Browsing History", "VideoList")},
	}

	tbl := table.New("Description", "Number")
	for _, r := range rows {
		tbl.AppendRow(r.description, strconv.Itoa(r.number))
	}

	return &Result{
		ID:          "tiktok_summary",
		Title:       "Summary information",
		Table:       tbl,
		Description: "Overall counts of your TikTok activity within the study period.",
	}
}

func (t *TikTok) extractVideoPosts(data map[string]any) *Result {
	videoList := getIn(data, "Video", "Videos", "VideoList")
	if videoList == nil {
		return nil
	}
	items, _ := videoList.([]any)

	type hourStats struct {
		videos int
		likes  int
	}
	stats := make(map[time.Time]*hourStats)
	for _, item := range items {
		ts, ok := itemDate(item)
		if !ok || ts.Before(t.FilterStart) || ts.After(t.FilterEnd) {
			continue
		}
		hour := timeline.HourKey(ts)
		hs := stats[hour]
		if hs == nil {
			hs = &hourStats{}
			stats[hour] = hs
		}
		hs.videos++
		m, _ := item.(map[string]any)
		hs.likes += castNumber(m, "Likes")
	}

	hours := make([]time.Time, 0, len(stats))
	for h := range stats {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })

	tbl := table.New("Date", "Timeslot", "Videos", "Likes received")
	for _, h := range hours {
		tbl.AppendRow(
			h.Format("2006-01-02"),
			timeline.Timeslot(h),
			strconv.Itoa(stats[h].videos),
			strconv.Itoa(stats[h].likes),
		)
	}

	return &Result{
		ID:    "tiktok_posts",
		Title: "Video posts",
		Table: tbl,
	}
}

func (t *TikTok) extractCommentsAndLikes(data map[string]any) *Result {
	comments, _ := t.filterByDate(getList(data, "Comment", "Comments", "CommentsList"))
	likes, _ := t.filterByDate(getList(data, "Activity", "Like List", "ItemFavoriteList"))

	likeCounts := timeline.CountByBucket(likes, timeline.HourKey)
	if len(likeCounts) == 0 {
		return nil
	}
	commentCounts := timeline.CountByBucket(comments, timeline.HourKey)

	merged := timeline.MergeCounts(commentCounts, "Comment posts", likeCounts, "Likes given")

	// Re-shape with the timeslot band between date and counts.
	tbl := table.New("Date", "Timeslot", "Comment posts", "Likes given")
	for _, row := range merged.Rows {
		bucket, err := time.Parse(timeline.BucketTimeFormat, row[0])
		if err != nil {
			continue
		}
		tbl.AppendRow(row[0], timeline.Timeslot(bucket), row[1], row[2])
	}

	return &Result{
		ID:    "tiktok_comments_and_likes",
		Title: "Comments and likes",
		Table: tbl,
		Charts: []Chart{{
			Title: "Average number of comments and likes for every hour of the day",
			Type:  "bar",
			Group: ChartGroup{Column: "Date", Label: "Hour of the day", DateFormat: "hour_cycle"},
			Values: []ChartValue{
				{Column: "Comment posts", Label: "Average nr. of comments", Aggregate: "mean", AddZeroes: true},
				{Column: "Likes given", Label: "Average nr. of posts", Aggregate: "mean", AddZeroes: true},
			},
		}},
	}
}

func (t *TikTok) extractVideosViewed(data map[string]any) *Result {
	viewed, _ := t.filterByDate(getList(data, "Activity", "Video Browsing History", "VideoList"))
	counts := timeline.CountByBucket(viewed, timeline.HourKey)
	if len(counts) == 0 {
		return nil
	}

	tbl := table.New("Date", "Timeslot", "Videos")
	for _, bc := range counts {
		tbl.AppendRow(
			bc.Bucket.Format(timeline.BucketTimeFormat),
			timeline.Timeslot(bc.Bucket),
			strconv.Itoa(bc.Count),
		)
	}

	return &Result{
		ID:    "tiktok_videos_viewed",
		Title: "Video views",
		Table: tbl,
		Charts: []Chart{{
			Title:  "Average number of videos watched per hour of the day",
			Type:   "bar",
			Group:  ChartGroup{Column: "Date", Label: "Hour of the day", DateFormat: "hour_cycle"},
			Values: []ChartValue{{Column: "Videos", Label: "Average nr. of videos", Aggregate: "mean", AddZeroes: true}},
		}},
	}
}

// sessionPaths are the activity lists whose timestamps define usage sessions.
var sessionPaths = [][]string{
	{"Video", "Videos", "VideoList"},
	{"Activity", "Video Browsing History", "VideoList"},
	{"Comment", "Comments", "CommentsList"},
}

func (t *TikTok) extractSessionInfo(data map[string]any) *Result {
	var items []any
	for _, path := range sessionPaths {
		items = append(items, getList(data, path...)...)
	}
	stamps, _ := t.filterByDate(items)

	sessions := timeline.Sessions(stamps, t.Inactivity)

	tbl := table.New("Start", "Duration (in minutes)")
	for _, s := range sessions {
		tbl.AppendRow(
			s.Start.Format("2006-01-02 15:04"),
			strconv.FormatFloat(s.Duration.Minutes(), 'f', 2, 64),
		)
	}

	return &Result{
		ID:    "tiktok_session_info",
		Title: "Session information",
		Table: tbl,
		Charts: []Chart{{
			Title:  "Number of minutes spent on TikTok",
			Type:   "line",
			Group:  ChartGroup{Column: "Start", Label: "Date", DateFormat: "auto"},
			Values: []ChartValue{{Column: "Duration (in minutes)", Label: "Nr. of minutes", Aggregate: "sum", AddZeroes: true}},
		}},
	}
}

func (t *TikTok) extractDirectMessages(data map[string]any) *Result {
	history := chatHistory(data)

	// Contacts are replaced by counter IDs; the donor is always ID 1.
	anonIDs := map[string]int{userName(data): 1}
	next := 2
	anonymize := func(name string) int {
		if id, ok := anonIDs[name]; ok {
			return id
		}
		anonIDs[name] = next
		next++
		return anonIDs[name]
	}

	tbl := table.New("Anonymous ID", "Sent")
	for _, item := range flattenChatHistory(history) {
		m, _ := item.(map[string]any)
		if m == nil {
			continue
		}
		from, _ := m["From"].(string)
		ts, ok := itemDate(item)
		if !ok {
			continue
		}
		tbl.AppendRow(strconv.Itoa(anonymize(from)), ts.Format("2006-01-02 15:04"))
	}

	return &Result{
		ID:    "tiktok_direct_messages",
		Title: "Direct Message Activity",
		Table: tbl,
	}
}

func (t *TikTok) extractCommentActivity(data map[string]any) *Result {
	comments := getIn(data, "Comment", "Comments", "CommentsList")
	if comments == nil {
		return nil
	}
	items, _ := comments.([]any)

	tbl := table.New("Posted on")
	for _, item := range items {
		ts, ok := itemDate(item)
		if !ok {
			continue
		}
		tbl.AppendRow(ts.Format("2006-01-02 15:04"))
	}

	return &Result{
		ID:    "tiktok_comment_activity",
		Title: "Comment Activity",
		Table: tbl,
	}
}

func (t *TikTok) extractVideosLiked(data map[string]any) *Result {
	favorites := getIn(data, "Activity", "Favorite Videos", "FavoriteVideoList")
	if favorites == nil {
		return nil
	}
	items, _ := favorites.([]any)

	tbl := table.New("Liked", "Link")
	for _, item := range items {
		m, _ := item.(map[string]any)
		if m == nil {
			continue
		}
		ts, ok := itemDate(item)
		if !ok {
			continue
		}
		link, _ := m["Link"].(string)
		tbl.AppendRow(ts.Format("2006-01-02 15:04"), link)
	}

	return &Result{
		ID:    "tiktok_videos_liked",
		Title: "Videos liked",
		Table: tbl,
	}
}
