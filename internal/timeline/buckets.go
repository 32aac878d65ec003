package timeline

import (
	"sort"
	"strconv"
	"time"

	"donorkit/internal/table"
)

// BucketFunc truncates a timestamp to its aggregation bucket.
type BucketFunc func(time.Time) time.Time

// HourKey truncates to the start of the hour, keeping the location.
func HourKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// DayKey truncates to the start of the day, keeping the location.
func DayKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// BucketCount is the number of events falling into one bucket.
type BucketCount struct {
	Bucket time.Time
	Count  int
}

// CountByBucket groups timestamps with key and counts per bucket. The result
// is sorted by bucket. Empty input yields nil.
func CountByBucket(timestamps []time.Time, key BucketFunc) []BucketCount {
	if len(timestamps) == 0 {
		return nil
	}

	counts := make(map[time.Time]int)
	for _, ts := range timestamps {
		counts[key(ts)]++
	}

	out := make([]BucketCount, 0, len(counts))
	for bucket, n := range counts {
		out = append(out, BucketCount{Bucket: bucket, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bucket.Before(out[j].Bucket) })
	return out
}

// BucketTimeFormat renders bucket keys in merged tables.
const BucketTimeFormat = "2006-01-02 15:04:05"

// MergeCounts outer-joins two bucketed series on their bucket key into one
// table with columns {Date, labelA, labelB}, sorted by bucket. A bucket
// present in only one series carries a zero in the other column.
func MergeCounts(a []BucketCount, labelA string, b []BucketCount, labelB string) *table.Table {
	countsA := make(map[time.Time]int, len(a))
	countsB := make(map[time.Time]int, len(b))
	seen := make(map[time.Time]bool)
	var buckets []time.Time

	for _, bc := range a {
		countsA[bc.Bucket] = bc.Count
		if !seen[bc.Bucket] {
			seen[bc.Bucket] = true
			buckets = append(buckets, bc.Bucket)
		}
	}
	for _, bc := range b {
		countsB[bc.Bucket] = bc.Count
		if !seen[bc.Bucket] {
			seen[bc.Bucket] = true
			buckets = append(buckets, bc.Bucket)
		}
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Before(buckets[j]) })

	out := table.New("Date", labelA, labelB)
	for _, bucket := range buckets {
		out.AppendRow(
			bucket.Format(BucketTimeFormat),
			strconv.Itoa(countsA[bucket]),
			strconv.Itoa(countsB[bucket]),
		)
	}
	return out
}

// Timeslot renders an hour-of-day bucket as the "10-11" band label used in
// hourly activity tables.
func Timeslot(t time.Time) string {
	h := t.Hour()
	return strconv.Itoa(h) + "-" + strconv.Itoa(h+1)
}
