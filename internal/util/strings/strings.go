// Package strings holds small text helpers for CLI output.
package strings

import "strconv"

// Pluralize returns word with an "s" appended unless count is exactly 1.
func Pluralize(word string, count int64) string {
	if count == 1 {
		return word
	}
	return word + "s"
}

// Count formats count followed by word, pluralized: "1 file", "3 files".
func Count(count int64, word string) string {
	return strconv.FormatInt(count, 10) + " " + Pluralize(word, count)
}
