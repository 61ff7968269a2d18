package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActivityMessage(t *testing.T) {
	tests := []struct {
		typ, old, new string
		want          string
	}{
		{ActivityCreated, "", "", "Created"},
		{ActivityStatusChanged, "todo", "done", "Status changed from todo to done"},
		{ActivityPriorityChanged, "2", "1", "Priority changed from P2 to P1"},
		{ActivityPriorityChanged, "3", "", "Priority removed (was P3)"},
		{ActivityPriorityChanged, "", "4", "Priority set to P4"},
		{ActivityScheduleStartChanged, "", "2024-05-01T09:00:00", "Start time set to 2024-05-01T09:00:00"},
		{ActivityScheduleEndChanged, "2024-05-01T10:00:00", "", "End time removed"},
		{ActivityDueDateChanged, "", "2024-05-03", "Due date set to 2024-05-03"},
		{ActivityDueDateChanged, "2024-05-03", "", "Due date removed"},
		{ActivityLabelAdded, "", "ops", "Label 'ops' added"},
		{ActivityLabelRemoved, "ops", "", "Label 'ops' removed"},
		{ActivityPersonAdded, "", "Alice", "Person 'Alice' added"},
		{ActivityPersonRemoved, "Alice", "", "Person 'Alice' removed"},
		{ActivityNoteLinked, "", "Retro", "Note 'Retro' linked"},
		{ActivityNoteUnlinked, "Retro", "", "Note 'Retro' unlinked"},
		{ActivityDependencyAdded, "", "Ship it", "Dependency 'Ship it' added"},
		{ActivityDependencyRemoved, "Ship it", "", "Dependency 'Ship it' removed"},
		{"archived", "", "true", "archived: true"},
		{"archived", "false", "", "archived: false"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ActivityMessage(tt.typ, tt.old, tt.new))
		})
	}
}

func TestChanges(t *testing.T) {
	p1, p2 := 1, 2
	due := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)

	before := &Entity{
		Status:   "todo",
		Priority: &p2,
		Labels:   []string{"ops", "urgent"},
		People:   []string{"Alice"},
	}
	after := &Entity{
		Status:   "in_progress",
		Priority: &p1,
		DueDate:  &due,
		Labels:   []string{"OPS", "infra"},
		People:   []string{"Alice"},
	}

	got := Changes(before, after)
	assert.Equal(t, []ActivityChange{
		{Type: ActivityStatusChanged, Old: "todo", New: "in_progress"},
		{Type: ActivityPriorityChanged, Old: "2", New: "1"},
		{Type: ActivityDueDateChanged, Old: "", New: "2024-05-03"},
		{Type: ActivityLabelAdded, New: "infra"},
		{Type: ActivityLabelRemoved, Old: "urgent"},
	}, got)
}

func TestChangesForNewEntity(t *testing.T) {
	assert.Equal(t, []ActivityChange{{Type: ActivityCreated}}, Changes(nil, &Entity{}))
	assert.Nil(t, Changes(&Entity{}, nil))
	assert.Empty(t, Changes(&Entity{Status: "todo"}, &Entity{Status: "todo"}))
}

func TestActivityTimestamp(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 999, time.UTC)
	assert.Equal(t, "2024-01-02T03:04:05", ActivityTimestamp(ts))
}
