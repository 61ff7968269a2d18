package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseKind("person")
	assert.ErrorIs(t, err, ErrInvalidKind)
	_, err = ParseKind("")
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestKindValidateParents(t *testing.T) {
	project := "project-0000000a"
	epic := "epic-0000000b"
	task := "task-0000000c"

	tests := []struct {
		name    string
		kind    Kind
		parents Parents
		wantErr error
	}{
		{"project without parents", KindProject, Parents{}, nil},
		{"project with project pointer", KindProject, Parents{ProjectID: project}, ErrInvalidParent},
		{"epic needs project", KindEpic, Parents{}, ErrMissingParent},
		{"epic with project", KindEpic, Parents{ProjectID: project}, nil},
		{"epic cannot nest in epic", KindEpic, Parents{ProjectID: project, EpicID: epic}, ErrInvalidParent},
		{"task with project only", KindTask, Parents{ProjectID: project}, nil},
		{"task with project and epic", KindTask, Parents{ProjectID: project, EpicID: epic}, nil},
		{"task cannot have task", KindTask, Parents{ProjectID: project, TaskID: task}, ErrInvalidParent},
		{"subtask needs task", KindSubtask, Parents{ProjectID: project}, ErrMissingParent},
		{"subtask needs project", KindSubtask, Parents{TaskID: task}, ErrMissingParent},
		{"subtask full", KindSubtask, Parents{ProjectID: project, EpicID: epic, TaskID: task}, nil},
		{"note free-standing", KindNote, Parents{}, nil},
		{"note in project", KindNote, Parents{ProjectID: project}, nil},
		{"malformed project pointer", KindEpic, Parents{ProjectID: "epic-0000000a"}, ErrInvalidParent},
		{"unknown kind", Kind("person"), Parents{}, ErrInvalidKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.kind.ValidateParents(tt.parents)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestKindHelpers(t *testing.T) {
	assert.True(t, KindTask.TaskLike())
	assert.True(t, KindSubtask.TaskLike())
	assert.False(t, KindEpic.TaskLike())

	assert.Equal(t, "e", KindEpic.SeqPrefix())
	assert.Equal(t, "t", KindTask.SeqPrefix())
	assert.Equal(t, "st", KindSubtask.SeqPrefix())
	assert.Empty(t, KindNote.SeqPrefix())

	assert.Equal(t, "todo", KindSubtask.DefaultStatus())
	assert.Equal(t, "active", KindProject.DefaultStatus())
}
