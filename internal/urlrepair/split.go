// Package urlrepair detects and repairs a known upstream data-entry defect:
// several image URLs concatenated into a single field. The repair is
// two-phase, insert the extracted rows first and delete the malformed row
// only after every URL is confirmed present, so an interruption can leave a
// duplicate but never a loss.
package urlrepair

import "strings"

var schemeMarkers = []string{"https://", "http://"}

// Split extracts every URL from a possibly-concatenated field. Splitting is
// boundary aware: a new URL starts exactly where an http(s):// prefix
// begins. Surrounding whitespace and stray separators are trimmed. A clean
// single URL comes back as a one-element slice; a field with no scheme at
// all comes back empty.
func Split(field string) []string {
	starts := schemeStarts(field)
	if len(starts) == 0 {
		return nil
	}

	urls := make([]string, 0, len(starts))
	for i, start := range starts {
		end := len(field)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		candidate := strings.Trim(field[start:end], " \t\r\n,;")
		if candidate != "" {
			urls = append(urls, candidate)
		}
	}
	return urls
}

// IsMalformed reports whether the field holds more than one URL.
func IsMalformed(field string) bool {
	return len(schemeStarts(field)) > 1
}

func schemeStarts(field string) []int {
	var starts []int
	for i := 0; i < len(field); {
		marker := markerAt(field, i)
		if marker == "" {
			i++
			continue
		}
		starts = append(starts, i)
		i += len(marker)
	}
	return starts
}

func markerAt(field string, i int) string {
	for _, marker := range schemeMarkers {
		if strings.HasPrefix(field[i:], marker) {
			return marker
		}
	}
	return ""
}
