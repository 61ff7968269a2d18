package types

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Label is a normalized tag name, created on first use.
type Label struct {
	LabelID   string    `json:"label_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Person is an assignee, created on first use.
type Person struct {
	PersonID  string    `json:"person_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TagDiff reports the display names linked and unlinked by a reconciliation.
type TagDiff struct {
	Added   []string
	Removed []string
}

// Empty reports whether the reconciliation changed nothing.
func (d TagDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// FoldName returns the comparison key for a label or person name.
func FoldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// NormalizeLabels splits comma-separated entries, trims them, drops empty
// names, and removes duplicates by folded key keeping the first spelling.
func NormalizeLabels(names []string) []string {
	return normalizeNames(names, false)
}

// NormalizePeople is NormalizeLabels with a leading "@" stripped from each name.
func NormalizePeople(names []string) []string {
	return normalizeNames(names, true)
}

func normalizeNames(names []string, stripAt bool) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, entry := range names {
		for _, part := range strings.Split(entry, ",") {
			name := strings.TrimSpace(part)
			if stripAt {
				name = strings.TrimSpace(strings.TrimPrefix(name, "@"))
			}
			if name == "" {
				continue
			}
			key := FoldName(name)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, name)
		}
	}
	return out
}
