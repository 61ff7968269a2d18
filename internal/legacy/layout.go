package legacy

import (
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/worktrack/pkg/types"
)

// Location is what a legacy path says about the entity stored in it.
type Location struct {
	Kind    types.Kind // empty for people files
	Person  bool
	ID      string
	Parents types.Parents
}

// rank orders locations parent-first: people, then the hierarchy, then notes.
func (l Location) rank() int {
	if l.Person {
		return 0
	}
	for i, k := range types.Kinds {
		if k == l.Kind {
			return i + 1
		}
	}
	return len(types.Kinds) + 1
}

// PathInfo maps a file under root to the entity it holds. The recognized
// layout is:
//
//	projects/<p>.md
//	projects/<p>/epics/<e>.md
//	projects/<p>/epics/<e>/tasks/<t>.md
//	projects/<p>/epics/<e>/tasks/<t>/subtasks/<s>.md
//	projects/<p>/tasks/<t>.md
//	projects/<p>/tasks/<t>/subtasks/<s>.md
//	notes/<n>.md
//	people/<person>.md
//
// Every id segment must be well formed for its kind.
func PathInfo(root, path string) (Location, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return Location{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	last := len(parts) - 1
	if !strings.HasSuffix(parts[last], ".md") {
		return Location{}, false
	}
	parts[last] = strings.TrimSuffix(parts[last], ".md")

	switch {
	case len(parts) == 2 && parts[0] == "people":
		if types.ValidateID(parts[1], types.PersonPrefix) != nil {
			return Location{}, false
		}
		return Location{Person: true, ID: parts[1]}, true
	case len(parts) == 2 && parts[0] == "notes":
		return located(types.KindNote, parts[1], types.Parents{})
	case len(parts) >= 2 && parts[0] == "projects":
		return hierarchyPath(parts[1:])
	}
	return Location{}, false
}

// hierarchyPath walks the segments below projects/.
func hierarchyPath(parts []string) (Location, bool) {
	var p types.Parents
	if len(parts) == 1 {
		return located(types.KindProject, parts[0], p)
	}
	p.ProjectID = parts[0]
	if !validID(p.ProjectID, types.KindProject) {
		return Location{}, false
	}
	rest := parts[1:]

	if len(rest) >= 2 && rest[0] == "epics" {
		if len(rest) == 2 {
			return located(types.KindEpic, rest[1], p)
		}
		p.EpicID = rest[1]
		if !validID(p.EpicID, types.KindEpic) {
			return Location{}, false
		}
		rest = rest[2:]
	}

	if len(rest) < 2 || rest[0] != "tasks" {
		return Location{}, false
	}
	if len(rest) == 2 {
		return located(types.KindTask, rest[1], p)
	}
	p.TaskID = rest[1]
	if !validID(p.TaskID, types.KindTask) {
		return Location{}, false
	}
	if len(rest) == 4 && rest[2] == "subtasks" {
		return located(types.KindSubtask, rest[3], p)
	}
	return Location{}, false
}

func located(k types.Kind, id string, p types.Parents) (Location, bool) {
	if !validID(id, k) {
		return Location{}, false
	}
	return Location{Kind: k, ID: id, Parents: p}, true
}

func validID(id string, k types.Kind) bool {
	return types.ValidateID(id, k) == nil
}
