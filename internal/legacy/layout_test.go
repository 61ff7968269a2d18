package legacy

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/worktrack/pkg/types"
)

const (
	projectID = "project-a0000001"
	epicID    = "epic-a0000001"
	taskID    = "task-a0000001"
	loneTask  = "task-a0000002"
	subtaskID = "subtask-a0000001"
	noteID    = "note-a0000001"
	personID  = "person-a0000001"
)

func TestPathInfo(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "data")
	tests := []struct {
		path string
		want Location
		ok   bool
	}{
		{"projects/" + projectID + ".md", Location{Kind: types.KindProject, ID: projectID}, true},
		{
			"projects/" + projectID + "/epics/" + epicID + ".md",
			Location{Kind: types.KindEpic, ID: epicID, Parents: types.Parents{ProjectID: projectID}},
			true,
		},
		{
			"projects/" + projectID + "/epics/" + epicID + "/tasks/" + taskID + ".md",
			Location{Kind: types.KindTask, ID: taskID, Parents: types.Parents{ProjectID: projectID, EpicID: epicID}},
			true,
		},
		{
			"projects/" + projectID + "/epics/" + epicID + "/tasks/" + taskID + "/subtasks/" + subtaskID + ".md",
			Location{Kind: types.KindSubtask, ID: subtaskID, Parents: types.Parents{ProjectID: projectID, EpicID: epicID, TaskID: taskID}},
			true,
		},
		{
			"projects/" + projectID + "/tasks/" + loneTask + ".md",
			Location{Kind: types.KindTask, ID: loneTask, Parents: types.Parents{ProjectID: projectID}},
			true,
		},
		{
			"projects/" + projectID + "/tasks/" + loneTask + "/subtasks/" + subtaskID + ".md",
			Location{Kind: types.KindSubtask, ID: subtaskID, Parents: types.Parents{ProjectID: projectID, TaskID: loneTask}},
			true,
		},
		{"notes/" + noteID + ".md", Location{Kind: types.KindNote, ID: noteID}, true},
		{"people/" + personID + ".md", Location{Person: true, ID: personID}, true},

		{"projects/" + projectID + ".txt", Location{}, false},
		{"projects/not-an-id.md", Location{}, false},
		{"projects/" + projectID + "/epics/" + taskID + ".md", Location{}, false},
		{"projects/" + projectID + "/tasks/" + loneTask + "/notes/" + noteID + ".md", Location{}, false},
		{"projects/" + projectID + "/misc/" + taskID + ".md", Location{}, false},
		{"people/dana.md", Location{}, false},
		{"README.md", Location{}, false},
		{"../outside/" + projectID + ".md", Location{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := PathInfo(root, filepath.Join(root, filepath.FromSlash(tt.path)))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocationRankIsParentFirst(t *testing.T) {
	order := []Location{
		{Person: true},
		{Kind: types.KindProject},
		{Kind: types.KindEpic},
		{Kind: types.KindTask},
		{Kind: types.KindSubtask},
		{Kind: types.KindNote},
	}
	for i := 1; i < len(order); i++ {
		assert.Less(t, order[i-1].rank(), order[i].rank())
	}
}
