package types

import (
	"fmt"
	"time"
)

// Activity entry classifications.
const (
	EntryUser   = "user"
	EntrySystem = "system"
)

// System activity subtypes.
const (
	ActivityCreated              = "created"
	ActivityStatusChanged        = "status_changed"
	ActivityPriorityChanged      = "priority_changed"
	ActivityScheduleStartChanged = "schedule_start_changed"
	ActivityScheduleEndChanged   = "schedule_end_changed"
	ActivityDueDateChanged       = "due_date_changed"
	ActivityLabelAdded           = "label_added"
	ActivityLabelRemoved         = "label_removed"
	ActivityPersonAdded          = "person_added"
	ActivityPersonRemoved        = "person_removed"
	ActivityNoteLinked           = "note_linked"
	ActivityNoteUnlinked         = "note_unlinked"
	ActivityDependencyAdded      = "dependency_added"
	ActivityDependencyRemoved    = "dependency_removed"
)

// ActivityEntry is one row of an entity's activity ledger. Within one entity
// the Timestamp is the reconciliation key; EntryID only identifies the row.
type ActivityEntry struct {
	EntryID      string `json:"entry_id,omitempty"`
	EntityID     string `json:"entity_id,omitempty"`
	Timestamp    string `json:"timestamp"`
	Content      string `json:"content"`
	Type         string `json:"type,omitempty"`
	ActivityType string `json:"activity_type,omitempty"`
}

// ActivityTimestamp formats t at the ledger's second resolution.
func ActivityTimestamp(t time.Time) string {
	return t.Format(DateTimeLayout)
}

// ActivityChange is a system event waiting to be rendered into the ledger.
type ActivityChange struct {
	Type string
	Old  string
	New  string
}

// ActivityMessage renders the human-readable text for a system event.
func ActivityMessage(activityType, oldValue, newValue string) string {
	switch activityType {
	case ActivityCreated:
		return "Created"
	case ActivityStatusChanged:
		return fmt.Sprintf("Status changed from %s to %s", oldValue, newValue)
	case ActivityPriorityChanged:
		switch {
		case oldValue != "" && newValue != "":
			return fmt.Sprintf("Priority changed from P%s to P%s", oldValue, newValue)
		case oldValue != "":
			return fmt.Sprintf("Priority removed (was P%s)", oldValue)
		default:
			return fmt.Sprintf("Priority set to P%s", newValue)
		}
	case ActivityScheduleStartChanged:
		return setOrRemoved("Start time", newValue)
	case ActivityScheduleEndChanged:
		return setOrRemoved("End time", newValue)
	case ActivityDueDateChanged:
		return setOrRemoved("Due date", newValue)
	case ActivityLabelAdded:
		return fmt.Sprintf("Label '%s' added", newValue)
	case ActivityLabelRemoved:
		return fmt.Sprintf("Label '%s' removed", oldValue)
	case ActivityPersonAdded:
		return fmt.Sprintf("Person '%s' added", newValue)
	case ActivityPersonRemoved:
		return fmt.Sprintf("Person '%s' removed", oldValue)
	case ActivityNoteLinked:
		return fmt.Sprintf("Note '%s' linked", newValue)
	case ActivityNoteUnlinked:
		return fmt.Sprintf("Note '%s' unlinked", oldValue)
	case ActivityDependencyAdded:
		return fmt.Sprintf("Dependency '%s' added", newValue)
	case ActivityDependencyRemoved:
		return fmt.Sprintf("Dependency '%s' removed", oldValue)
	default:
		v := newValue
		if v == "" {
			v = oldValue
		}
		return fmt.Sprintf("%s: %s", activityType, v)
	}
}

func setOrRemoved(field, value string) string {
	if value == "" {
		return field + " removed"
	}
	return fmt.Sprintf("%s set to %s", field, value)
}

// Changes lists the system events between two snapshots of the same entity.
// A nil before means the entity is new and yields a single created event.
func Changes(before, after *Entity) []ActivityChange {
	if after == nil {
		return nil
	}
	if before == nil {
		return []ActivityChange{{Type: ActivityCreated}}
	}

	var out []ActivityChange
	if before.Status != after.Status {
		out = append(out, ActivityChange{Type: ActivityStatusChanged, Old: before.Status, New: after.Status})
	}
	if o, n := formatPriority(before.Priority), formatPriority(after.Priority); o != n {
		out = append(out, ActivityChange{Type: ActivityPriorityChanged, Old: o, New: n})
	}
	if o, n := formatTime(before.DueDate, DateLayout), formatTime(after.DueDate, DateLayout); o != n {
		out = append(out, ActivityChange{Type: ActivityDueDateChanged, Old: o, New: n})
	}
	if o, n := formatTime(before.ScheduleStart, DateTimeLayout), formatTime(after.ScheduleStart, DateTimeLayout); o != n {
		out = append(out, ActivityChange{Type: ActivityScheduleStartChanged, Old: o, New: n})
	}
	if o, n := formatTime(before.ScheduleEnd, DateTimeLayout), formatTime(after.ScheduleEnd, DateTimeLayout); o != n {
		out = append(out, ActivityChange{Type: ActivityScheduleEndChanged, Old: o, New: n})
	}
	out = append(out, nameChanges(before.Labels, after.Labels, ActivityLabelAdded, ActivityLabelRemoved)...)
	out = append(out, nameChanges(before.People, after.People, ActivityPersonAdded, ActivityPersonRemoved)...)
	return out
}

func nameChanges(before, after []string, added, removed string) []ActivityChange {
	var out []ActivityChange
	beforeKeys := foldSet(before)
	afterKeys := foldSet(after)
	for _, n := range after {
		if !beforeKeys[FoldName(n)] {
			out = append(out, ActivityChange{Type: added, New: n})
		}
	}
	for _, n := range before {
		if !afterKeys[FoldName(n)] {
			out = append(out, ActivityChange{Type: removed, Old: n})
		}
	}
	return out
}

func foldSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[FoldName(n)] = true
	}
	return set
}

func formatPriority(p *int) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%d", *p)
}

func formatTime(t *time.Time, layout string) string {
	if t == nil {
		return ""
	}
	return t.Format(layout)
}
