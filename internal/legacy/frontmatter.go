// Package legacy reads the markdown tree that predates the database: one file
// per entity with YAML frontmatter, laid out by hierarchy. It migrates the
// tree in bulk, watches it for edits, and guards both with a file lock.
package legacy

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMalformedFrontmatter is returned alongside a usable Document when the
// YAML block cannot be decoded. The body is still returned.
var ErrMalformedFrontmatter = errors.New("malformed frontmatter")

var (
	delimLF   = []byte("---\n")
	delimCRLF = []byte("---\r\n")
	bom       = []byte("\xef\xbb\xbf")
)

// Update is one entry of the frontmatter updates list.
type Update struct {
	Timestamp    string `yaml:"timestamp"`
	Content      string `yaml:"content"`
	Type         string `yaml:"type"`
	ActivityType string `yaml:"activity_type"`
}

// ChecklistEntry accepts both the text/done and title/status spellings.
type ChecklistEntry struct {
	Text   string `yaml:"text"`
	Title  string `yaml:"title"`
	Done   bool   `yaml:"done"`
	Status string `yaml:"status"`
}

// Dependencies are the blocks/blocked_by lists of a document.
type Dependencies struct {
	Blocks    []string `yaml:"blocks"`
	BlockedBy []string `yaml:"blocked_by"`
}

// Document is a parsed legacy file.
type Document struct {
	Title         string           `yaml:"title"`
	Name          string           `yaml:"name"`
	Status        string           `yaml:"status"`
	Priority      Priority         `yaml:"priority"`
	Created       string           `yaml:"created"`
	Updated       string           `yaml:"updated"`
	DueDate       string           `yaml:"due_date"`
	ScheduleStart string           `yaml:"schedule_start"`
	ScheduleEnd   string           `yaml:"schedule_end"`
	Labels        []string         `yaml:"labels"`
	People        []string         `yaml:"people"`
	Updates       []Update         `yaml:"updates"`
	Dependencies  Dependencies     `yaml:"dependencies"`
	Blocks        []string         `yaml:"blocks"`
	BlockedBy     []string         `yaml:"blocked_by"`
	Color         string           `yaml:"color"`
	Checklist     []ChecklistEntry `yaml:"checklist"`
	SeqID         string           `yaml:"seq_id"`
	Archived      bool             `yaml:"archived"`
	IsInbox       bool             `yaml:"is_inbox"`
	ProjectID     string           `yaml:"project_id"`
	EpicID        string           `yaml:"epic_id"`
	TaskID        string           `yaml:"task_id"`

	Body string `yaml:"-"`
}

// Priority is an optional integer written either as 2 or as "P2".
type Priority struct {
	Value *int
}

// UnmarshalYAML accepts ints and "P<n>" strings. Anything else leaves the
// priority unset.
func (p *Priority) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return nil
	}
	s := strings.TrimPrefix(strings.TrimSpace(strings.ToUpper(node.Value)), "P")
	if n, err := strconv.Atoi(s); err == nil {
		p.Value = &n
	}
	return nil
}

// AllDependencies merges the nested dependencies map with the top-level
// blocks and blocked_by lists, dropping duplicates.
func (d *Document) AllDependencies() Dependencies {
	return Dependencies{
		Blocks:    mergeIDs(d.Dependencies.Blocks, d.Blocks),
		BlockedBy: mergeIDs(d.Dependencies.BlockedBy, d.BlockedBy),
	}
}

func mergeIDs(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, l := range lists {
		for _, id := range l {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// ParseDocument splits data into its YAML frontmatter and markdown body.
// Files without frontmatter are all body. When the YAML is malformed the
// returned Document carries only the body, with ErrMalformedFrontmatter.
func ParseDocument(data []byte) (*Document, error) {
	data = bytes.TrimPrefix(data, bom)
	if len(bytes.TrimSpace(data)) == 0 {
		return &Document{}, nil
	}

	front, body, ok := splitFrontmatter(data)
	if !ok {
		return &Document{Body: string(data)}, nil
	}

	var doc Document
	if err := yaml.Unmarshal(front, &doc); err != nil {
		return &Document{Body: body}, fmt.Errorf("%w: %v", ErrMalformedFrontmatter, err)
	}
	doc.Body = body
	return &doc, nil
}

// splitFrontmatter returns the YAML between the opening and closing "---"
// lines and everything after the closing line.
func splitFrontmatter(data []byte) (front []byte, body string, ok bool) {
	var nl []byte
	switch {
	case bytes.HasPrefix(data, delimLF):
		nl = []byte("\n")
	case bytes.HasPrefix(data, delimCRLF):
		nl = []byte("\r\n")
	default:
		return nil, "", false
	}
	rest := data[len("---")+len(nl):]

	closing := append(append(append([]byte{}, nl...), "---"...), nl...)
	if bytes.HasPrefix(rest, closing[len(nl):]) {
		return nil, string(rest[len(closing)-len(nl):]), true
	}
	i := bytes.Index(rest, closing)
	if i < 0 {
		// A closing delimiter at end of file has no trailing newline.
		tail := append(append([]byte{}, nl...), "---"...)
		if !bytes.HasSuffix(rest, tail) {
			return nil, "", false
		}
		return rest[:len(rest)-len(tail)], "", true
	}
	return rest[:i], string(rest[i+len(closing):]), true
}
