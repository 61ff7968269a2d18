package types

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncPayloadValidate(t *testing.T) {
	project := NewID(KindProject)
	tests := []struct {
		name    string
		payload SyncPayload
		wantErr error
	}{
		{"valid project", SyncPayload{ID: NewID(KindProject), Kind: KindProject, Fields: Fields{Title: "P"}}, nil},
		{"bad kind", SyncPayload{ID: "x-00000000", Kind: "x", Fields: Fields{Title: "P"}}, ErrInvalidKind},
		{"id of other kind", SyncPayload{ID: NewID(KindEpic), Kind: KindTask, Fields: Fields{Title: "T", Parents: Parents{ProjectID: project}}}, ErrInvalidID},
		{"missing title", SyncPayload{ID: NewID(KindNote), Kind: KindNote}, ErrMissingTitle},
		{"task missing project", SyncPayload{ID: NewID(KindTask), Kind: KindTask, Fields: Fields{Title: "T"}}, ErrMissingParent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestSyncPayloadNilVersusEmptyLists(t *testing.T) {
	var p SyncPayload
	require.NoError(t, json.Unmarshal([]byte(`{"id":"note-00000001","kind":"note","fields":{"title":"n"}}`), &p))
	assert.Nil(t, p.Labels)
	assert.Nil(t, p.Activity)

	require.NoError(t, json.Unmarshal([]byte(`{"id":"note-00000001","kind":"note","fields":{"title":"n"},"labels":[]}`), &p))
	assert.NotNil(t, p.Labels)
	assert.Empty(t, p.Labels)
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(fmt.Errorf("wrap: %w", ErrParentNotFound)))
	assert.False(t, IsValidation(fmt.Errorf("disk: %w", ErrDetached)))
	assert.False(t, IsValidation(nil))
}
