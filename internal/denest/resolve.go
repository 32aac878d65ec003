package denest

import "strings"

// FindOne returns the value of the least-nested key containing fragment as a
// substring. Depth is the number of delimiter characters in the key; the
// shallowest match wins, and equal-depth ties go to the key seen first in
// iteration order. Returns the empty string when nothing matches, when fr is
// nil, or when the fragment is unusable — absence of a field is not an error.
func FindOne(fr *FlatRecord, fragment string) string {
	if fr == nil {
		return ""
	}

	out := ""
	best := -1
	for _, k := range fr.keys {
		if !strings.Contains(k, fragment) {
			continue
		}
		depth := strings.Count(k, Delimiter)
		if best == -1 || depth < best {
			best = depth
			out = fr.values[k]
		}
	}
	return out
}

// FindAll returns the values of every key containing fragment as a substring,
// in iteration order. Returns nil when nothing matches.
func FindAll(fr *FlatRecord, fragment string) []string {
	if fr == nil {
		return nil
	}

	var out []string
	for _, k := range fr.keys {
		if strings.Contains(k, fragment) {
			out = append(out, fr.values[k])
		}
	}
	return out
}
