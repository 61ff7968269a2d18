package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/worktrack/pkg/types"
)

func intPtr(n int) *int { return &n }

func TestSyncEntity_Idempotent(t *testing.T) {
	b := newTestBackend(t)
	mustSync(t, b, projectPayload(projectA))

	p := taskPayload(taskA1, projectA)
	p.Fields.Priority = intPtr(2)
	p.Fields.DueDate = "2025-04-01"
	p.Fields.Content = "Rotate the staging certificates"
	p.Labels = []string{"ops", "urgent"}
	p.People = []string{"@alice"}
	p.Activity = []types.ActivityEntry{
		{Timestamp: "2025-03-01T09:00:00", Content: "Created", Type: types.EntrySystem, ActivityType: types.ActivityCreated},
		{Timestamp: "2025-03-01T09:10:00", Content: "Started on it"},
	}

	mustSync(t, b, p)
	first := snapshot(t, b)
	mustSync(t, b, p)
	second := snapshot(t, b)

	assert.Equal(t, first, second)
	assert.Len(t, second["entity_label"], 2)
	assert.Len(t, second["entity_person"], 1)
	assert.Len(t, second["activity"], 2)
	assert.Len(t, second["search_index"], 2)
}

func TestSyncEntity_CreatesAndReads(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	p := projectPayload(projectA)
	p.Fields.Color = "teal"
	p.Fields.Created = "2025-01-15T08:00:00Z"
	mustSync(t, b, p)

	task := taskPayload(taskA1, projectA)
	task.Fields.ScheduleStart = "2025-03-03T10:00:00"
	task.Fields.ScheduleEnd = "2025-03-03 11:30"
	task.Fields.Checklist = []types.ChecklistItem{{Text: "draft"}, {Text: "review", Done: true}}
	task.Labels = []string{"Ops, backend"}
	mustSync(t, b, task)

	proj, err := b.GetEntity(ctx, projectA)
	require.NoError(t, err)
	assert.Equal(t, "teal", proj.Color)
	assert.Equal(t, "active", proj.Status)
	assert.Equal(t, time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC), proj.CreatedAt)
	assert.Equal(t, testNow, proj.UpdatedAt)
	assert.Empty(t, proj.SeqID)

	got, err := b.GetEntity(ctx, taskA1)
	require.NoError(t, err)
	assert.Equal(t, types.KindTask, got.Kind)
	assert.Equal(t, "t1", got.SeqID)
	assert.Equal(t, projectA, got.ProjectID)
	require.NotNil(t, got.ScheduleStart)
	assert.Equal(t, time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC), *got.ScheduleStart)
	require.NotNil(t, got.ScheduleEnd)
	assert.Equal(t, time.Date(2025, 3, 3, 11, 30, 0, 0, time.UTC), *got.ScheduleEnd)
	assert.Equal(t, task.Fields.Checklist, got.Checklist)
	assert.Equal(t, []string{"backend", "Ops"}, got.Labels)

	_, err = b.GetEntity(ctx, taskA2)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSyncEntity_RejectsInvalidPayloads(t *testing.T) {
	b := newTestBackend(t)
	mustSync(t, b,
		projectPayload(projectA),
		projectPayload(projectB),
		taskPayload(taskB1, projectB),
	)

	missingTitle := taskPayload(taskA1, projectA)
	missingTitle.Fields.Title = ""
	noProject := taskPayload(taskA1, "")
	unknownProject := taskPayload(taskA1, "project-ffffffff")
	crossProject := subtaskPayload(subtaskA, projectA, taskB1)
	epicWithTask := epicPayload(epicA, projectA)
	epicWithTask.Fields.TaskID = taskB1
	unknownEpic := taskPayload(taskA1, projectA)
	unknownEpic.Fields.EpicID = "epic-ffffffff"

	tests := []struct {
		name    string
		payload types.SyncPayload
		want    error
	}{
		{"malformed id", types.SyncPayload{ID: "task-XYZ", Kind: types.KindTask, Fields: types.Fields{Title: "x"}}, types.ErrInvalidID},
		{"id of another kind", types.SyncPayload{ID: epicA, Kind: types.KindTask, Fields: types.Fields{Title: "x"}}, types.ErrInvalidID},
		{"unknown kind", types.SyncPayload{ID: "story-a0000001", Kind: "story", Fields: types.Fields{Title: "x"}}, types.ErrInvalidKind},
		{"missing title", missingTitle, types.ErrMissingTitle},
		{"task without project", noProject, types.ErrMissingParent},
		{"epic with task pointer", epicWithTask, types.ErrInvalidParent},
		{"project not stored", unknownProject, types.ErrParentNotFound},
		{"epic not stored", unknownEpic, types.ErrParentNotFound},
		{"subtask of task in another project", crossProject, types.ErrParentMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := snapshot(t, b)
			err := b.SyncEntity(context.Background(), tt.payload)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, types.IsValidation(err))
			assert.Equal(t, before, snapshot(t, b), "rejected sync must not write")
		})
	}
}

func TestSyncEntity_StatusResolution(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	mustSync(t, b, projectPayload(projectA))

	status := func(id, token string) *types.Entity {
		t.Helper()
		p := taskPayload(id, projectA)
		p.Fields.Status = token
		mustSync(t, b, p)
		e, err := b.GetEntity(ctx, id)
		require.NoError(t, err)
		return e
	}

	e := status(taskA1, "IN_PROGRESS")
	assert.Equal(t, "in_progress", e.Status)
	assert.Equal(t, "IN_PROGRESS", e.StatusRaw)

	e = status(taskA2, "wip")
	assert.Equal(t, "todo", e.Status, "new entity falls back to the kind default")
	assert.Equal(t, "wip", e.StatusRaw)

	status(taskA3, "done")
	e = status(taskA3, "active")
	assert.Equal(t, "done", e.Status, "status not applicable to tasks keeps the prior value")
	assert.Equal(t, "active", e.StatusRaw)

	e = status(taskA3, "")
	assert.Equal(t, "done", e.Status)

	proj, err := b.GetEntity(ctx, projectA)
	require.NoError(t, err)
	assert.Equal(t, "active", proj.Status)
}

func TestSyncEntity_DatesAreBestEffort(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	mustSync(t, b, projectPayload(projectA))

	due := func(raw string) *time.Time {
		t.Helper()
		p := taskPayload(taskA1, projectA)
		p.Fields.DueDate = raw
		mustSync(t, b, p)
		e, err := b.GetEntity(ctx, taskA1)
		require.NoError(t, err)
		return e.DueDate
	}

	april := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	got := due("2025-04-01")
	require.NotNil(t, got)
	assert.Equal(t, april, *got)

	got = due("the day after never")
	require.NotNil(t, got, "unparsable date keeps the prior value")
	assert.Equal(t, april, *got)

	got = due("2025-04-20T17:45:00")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC), *got)

	assert.Nil(t, due(""), "empty date clears the field")
}

func TestSyncEntity_NaturalDates(t *testing.T) {
	b := newTestBackendWithConfig(t, types.Config{
		Backend:      types.BackendSQLite,
		DataDir:      t.TempDir(),
		NaturalDates: true,
	})
	mustSync(t, b, projectPayload(projectA))

	p := taskPayload(taskA1, projectA)
	p.Fields.DueDate = "tomorrow"
	mustSync(t, b, p)

	e, err := b.GetEntity(context.Background(), taskA1)
	require.NoError(t, err)
	require.NotNil(t, e.DueDate)
	assert.Equal(t, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), *e.DueDate)
}

func TestSyncEntity_SequenceIDs(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	mustSync(t, b,
		projectPayload(projectA),
		projectPayload(projectB),
		epicPayload(epicA, projectA),
		taskPayload(taskA1, projectA),
		taskPayload(taskA2, projectA),
		taskPayload(taskB1, projectB),
		subtaskPayload(subtaskA, projectA, taskA1),
	)

	want := map[string]string{
		epicA:    "e1",
		taskA1:   "t1",
		taskA2:   "t2",
		taskB1:   "t1",
		subtaskA: "st1",
	}
	for id, seq := range want {
		e, err := b.GetEntity(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, seq, e.SeqID, id)
	}

	explicit := taskPayload(taskA3, projectA)
	explicit.Fields.SeqID = "t9"
	mustSync(t, b, explicit, taskPayload(taskA1, projectA))

	e, err := b.GetEntity(ctx, taskA1)
	require.NoError(t, err)
	assert.Equal(t, "t1", e.SeqID, "resync keeps the assigned sequence")

	next, err := b.entities.nextSeqID(ctx, b.db, types.KindTask, projectA)
	require.NoError(t, err)
	assert.Equal(t, "t10", next)
}

func TestSyncEntity_NilListsLeaveStoresAlone(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	mustSync(t, b, projectPayload(projectA))

	p := taskPayload(taskA1, projectA)
	p.Labels = []string{"ops"}
	p.People = []string{"alice"}
	p.Activity = []types.ActivityEntry{{Timestamp: "2025-03-01T08:00:00", Content: "kickoff"}}
	mustSync(t, b, p)

	p.Labels, p.People, p.Activity = nil, nil, nil
	mustSync(t, b, p)

	e, err := b.GetEntity(ctx, taskA1)
	require.NoError(t, err)
	assert.Equal(t, []string{"ops"}, e.Labels)
	assert.Equal(t, []string{"alice"}, e.People)
	activity, err := b.Activity(ctx, taskA1)
	require.NoError(t, err)
	assert.Len(t, activity, 1)

	p.Labels, p.People, p.Activity = []string{}, []string{}, []types.ActivityEntry{}
	mustSync(t, b, p)

	e, err = b.GetEntity(ctx, taskA1)
	require.NoError(t, err)
	assert.Empty(t, e.Labels)
	assert.Empty(t, e.People)
	activity, err = b.Activity(ctx, taskA1)
	require.NoError(t, err)
	assert.Empty(t, activity)
}

func TestSyncEntity_RollsBackOnStorageFailure(t *testing.T) {
	b := newTestBackend(t)
	mustSync(t, b, projectPayload(projectA))

	_, err := b.db.Exec("DROP TABLE search_index")
	require.NoError(t, err)
	before := dumpRows(t, b.db, "SELECT id FROM entities ORDER BY id")

	p := taskPayload(taskA1, projectA)
	p.Labels = []string{"ops"}
	err = b.SyncEntity(context.Background(), p)
	require.Error(t, err)
	assert.False(t, types.IsValidation(err))
	assert.Contains(t, err.Error(), taskA1)

	assert.Equal(t, before, dumpRows(t, b.db, "SELECT id FROM entities ORDER BY id"))
	assert.Empty(t, dumpRows(t, b.db, "SELECT * FROM labels"))
	assert.Empty(t, dumpRows(t, b.db, "SELECT * FROM entity_labels"))
}

func TestDeleteEntity(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	mustSync(t, b, projectPayload(projectA))

	p := taskPayload(taskA1, projectA)
	p.Labels = []string{"ops"}
	p.People = []string{"alice"}
	p.Activity = []types.ActivityEntry{{Timestamp: "2025-03-01T08:00:00", Content: "kickoff"}}
	mustSync(t, b, p, taskPayload(taskA2, projectA))
	require.NoError(t, b.AddEdge(ctx, taskA1, taskA2, types.Blocks))

	require.NoError(t, b.DeleteEntity(ctx, taskA1))

	_, err := b.GetEntity(ctx, taskA1)
	assert.ErrorIs(t, err, types.ErrNotFound)
	for _, q := range []string{
		"SELECT * FROM entity_labels WHERE entity_id = '" + taskA1 + "'",
		"SELECT * FROM entity_people WHERE entity_id = '" + taskA1 + "'",
		"SELECT * FROM activity WHERE entity_id = '" + taskA1 + "'",
		"SELECT entity_id FROM search_index WHERE entity_id = '" + taskA1 + "'",
		"SELECT * FROM entity_dependencies WHERE entity_id = '" + taskA1 + "'",
	} {
		assert.Empty(t, dumpRows(t, b.db, q), q)
	}

	labels, err := b.Labels(ctx)
	require.NoError(t, err)
	assert.Len(t, labels, 1, "labels outlive their links")

	t.Run("missing entity", func(t *testing.T) {
		assert.ErrorIs(t, b.DeleteEntity(ctx, taskA1), types.ErrNotFound)
	})
	t.Run("malformed id", func(t *testing.T) {
		assert.ErrorIs(t, b.DeleteEntity(ctx, "nonsense"), types.ErrInvalidID)
	})
	t.Run("entity with children", func(t *testing.T) {
		assert.ErrorIs(t, b.DeleteEntity(ctx, projectA), types.ErrHasChildren)
		_, err := b.GetEntity(ctx, projectA)
		assert.NoError(t, err)
	})
}

func TestQueryEntities(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	done := taskPayload(taskA2, projectA)
	done.Fields.Status = "done"
	done.Fields.DueDate = "2025-03-10"
	legacy := taskPayload(taskA3, projectA)
	legacy.Fields.Status = "someday"
	legacy.Fields.DueDate = "2025-05-01"
	archived := taskPayload(taskB1, projectB)
	archived.Fields.Archived = true
	inEpic := taskPayload(taskA1, projectA)
	inEpic.Fields.EpicID = epicA

	mustSync(t, b,
		projectPayload(projectA),
		projectPayload(projectB),
		epicPayload(epicA, projectA),
		inEpic, done, legacy, archived,
	)

	march31 := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	march10 := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		query types.EntityQuery
		want  []string
	}{
		{"by kind", types.EntityQuery{Kind: types.KindTask}, []string{taskA1, taskA2, taskA3}},
		{"include archived", types.EntityQuery{Kind: types.KindTask, IncludeArchived: true}, []string{taskA1, taskA2, taskA3, taskB1}},
		{"by project", types.EntityQuery{ProjectID: projectA}, []string{epicA, taskA1, taskA2, taskA3}},
		{"by epic", types.EntityQuery{EpicID: epicA}, []string{taskA1}},
		{"by typed status", types.EntityQuery{Status: "Done"}, []string{taskA2}},
		{"by raw status", types.EntityQuery{Status: "someday"}, []string{taskA3}},
		{"due before inclusive", types.EntityQuery{DueBefore: &march10}, []string{taskA2}},
		{"due after", types.EntityQuery{DueAfter: &march31}, []string{taskA3}},
		{"limit", types.EntityQuery{Kind: types.KindTask, Limit: 2}, []string{taskA1, taskA2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := b.QueryEntities(ctx, tt.query)
			require.NoError(t, err)
			ids := make([]string, len(results))
			for i, e := range results {
				ids[i] = e.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestActivityAppends(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	mustSync(t, b, projectPayload(projectA), taskPayload(taskA1, projectA))

	require.NoError(t, b.AppendActivity(ctx, taskA1, types.ActivityChange{
		Type: types.ActivityStatusChanged, Old: "todo", New: "in_progress",
	}))
	require.NoError(t, b.AddNote(ctx, taskA1, "  waiting on the vendor  "))
	assert.ErrorIs(t, b.AddNote(ctx, taskA1, "   "), types.ErrEmptyContent)
	assert.ErrorIs(t, b.AddNote(ctx, taskA2, "hello"), types.ErrNotFound)

	entries, err := b.Activity(ctx, taskA1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Status changed from todo to in_progress", entries[0].Content)
	assert.Equal(t, types.EntrySystem, entries[0].Type)
	assert.Equal(t, types.ActivityStatusChanged, entries[0].ActivityType)
	assert.Equal(t, "waiting on the vendor", entries[1].Content)
	assert.Equal(t, types.EntryUser, entries[1].Type)
	assert.Equal(t, types.ActivityTimestamp(testNow), entries[1].Timestamp)

	hits, err := b.Search(ctx, "vendor")
	require.NoError(t, err)
	require.Len(t, hits, 1, "notes are searchable right away")
	assert.Equal(t, taskA1, hits[0].Entity.ID)
}

func TestProjectActivity(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	mustSync(t, b,
		projectPayload(projectA),
		projectPayload(projectB),
		taskPayload(taskA1, projectA),
		taskPayload(taskB1, projectB),
	)
	require.NoError(t, b.AddNote(ctx, projectA, "planning"))
	require.NoError(t, b.AddNote(ctx, taskA1, "first"))
	require.NoError(t, b.AddNote(ctx, taskB1, "elsewhere"))

	recent, err := b.ProjectActivity(ctx, projectA, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	require.NoError(t, b.AddNote(ctx, taskA1, "second"))
	recent, err = b.ProjectActivity(ctx, projectA, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "second", recent[0].Content, "a new note invalidates the cached listing")
}

func TestEnsurePerson(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	p, err := b.EnsurePerson(ctx, " @Alice ")
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Name)
	assert.NoError(t, types.ValidateID(p.PersonID, types.PersonPrefix))

	again, err := b.EnsurePerson(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, p.PersonID, again.PersonID)
	assert.Equal(t, "Alice", again.Name, "the first spelling is kept")

	_, err = b.EnsurePerson(ctx, "@")
	assert.ErrorIs(t, err, types.ErrEmptyName)

	people, err := b.People(ctx)
	require.NoError(t, err)
	assert.Len(t, people, 1)
}
