package types

import "fmt"

// Kind is the closed category of an entity.
type Kind string

// Entity kinds.
const (
	KindProject Kind = "project"
	KindEpic    Kind = "epic"
	KindTask    Kind = "task"
	KindSubtask Kind = "subtask"
	KindNote    Kind = "note"
)

// Kinds lists every entity kind in parent-first order.
var Kinds = []Kind{KindProject, KindEpic, KindTask, KindSubtask, KindNote}

// pointerRule says whether a hierarchy pointer is allowed for a kind.
type pointerRule int

const (
	forbidden pointerRule = iota
	optional
	required
)

// hierarchy is the per-kind rule set for the three parent pointers.
type hierarchy struct {
	project pointerRule
	epic    pointerRule
	task    pointerRule
}

var hierarchies = map[Kind]hierarchy{
	KindProject: {project: forbidden, epic: forbidden, task: forbidden},
	KindEpic:    {project: required, epic: forbidden, task: forbidden},
	KindTask:    {project: required, epic: optional, task: forbidden},
	KindSubtask: {project: required, epic: optional, task: required},
	KindNote:    {project: optional, epic: forbidden, task: forbidden},
}

// ParseKind returns the Kind named by s, or ErrInvalidKind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// Valid reports whether k is one of the five entity kinds.
func (k Kind) Valid() bool {
	_, ok := hierarchies[k]
	return ok
}

// TaskLike reports whether entities of this kind take part in dependency edges.
func (k Kind) TaskLike() bool {
	return k == KindTask || k == KindSubtask
}

// SeqPrefix is the prefix of the per-project sequence id ("e3", "t12", "st4").
// Kinds without a sequence return "".
func (k Kind) SeqPrefix() string {
	switch k {
	case KindEpic:
		return "e"
	case KindTask:
		return "t"
	case KindSubtask:
		return "st"
	default:
		return ""
	}
}

// DefaultStatus is the status assigned when none resolves.
func (k Kind) DefaultStatus() string {
	if k.TaskLike() {
		return "todo"
	}
	return "active"
}

// Parents holds the hierarchy pointers of an entity.
type Parents struct {
	ProjectID string `json:"project_id,omitempty"`
	EpicID    string `json:"epic_id,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
}

// ValidateParents checks the shape of p against the rules for k: required
// pointers are present, forbidden ones are empty, and each present pointer is
// a well-formed id of the parent kind. Existence is checked by the store.
func (k Kind) ValidateParents(p Parents) error {
	h, ok := hierarchies[k]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidKind, k)
	}
	checks := []struct {
		rule  pointerRule
		value string
		kind  Kind
	}{
		{h.project, p.ProjectID, KindProject},
		{h.epic, p.EpicID, KindEpic},
		{h.task, p.TaskID, KindTask},
	}
	for _, c := range checks {
		switch {
		case c.value == "" && c.rule == required:
			return fmt.Errorf("%w: %s requires a %s", ErrMissingParent, k, c.kind)
		case c.value != "" && c.rule == forbidden:
			return fmt.Errorf("%w: %s cannot have a %s", ErrInvalidParent, k, c.kind)
		case c.value != "":
			if err := ValidateID(c.value, c.kind); err != nil {
				return fmt.Errorf("%w: %s %q", ErrInvalidParent, c.kind, c.value)
			}
		}
	}
	return nil
}
