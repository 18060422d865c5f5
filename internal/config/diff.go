package config

import (
	"strings"

	"github.com/google/go-cmp/cmp"
)

// DiffSerialized returns a line diff between two serialized rule directories.
func DiffSerialized(previous, current []byte) string {
	return cmp.Diff(splitLines(previous), splitLines(current))
}

// Diff compares the files behind two loaded configs. A nil previous config
// diffs against nothing.
func Diff(previous, current *Config) string {
	var prev, curr []byte
	if previous != nil {
		prev = previous.Serialized
	}
	if current != nil {
		curr = current.Serialized
	}
	return DiffSerialized(prev, curr)
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return []string{""}
	}
	return strings.Split(text, "\n")
}
