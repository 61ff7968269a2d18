package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDRoundTrip(t *testing.T) {
	for _, k := range Kinds {
		id := NewID(k)
		require.NoError(t, ValidateID(id, k), id)

		got, ok := KindOf(id)
		require.True(t, ok)
		assert.Equal(t, k, got)
	}
	assert.Regexp(t, `^person-[a-f0-9]{8}$`, NewPersonID())
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		id   string
		kind Kind
		ok   bool
	}{
		{"task-1a2b3c4d", KindTask, true},
		{"task-1A2B3C4D", KindTask, false},
		{"task-1a2b3c4", KindTask, false},
		{"task-1a2b3c4d5", KindTask, false},
		{"subtask-1a2b3c4d", KindTask, false},
		{"task1a2b3c4d", KindTask, false},
		{"", KindNote, false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateID(tt.id, tt.kind)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidID)
			}
		})
	}
}

func TestKindOfRejectsUnknownPrefix(t *testing.T) {
	_, ok := KindOf("person-1a2b3c4d")
	assert.False(t, ok)
	_, ok = KindOf("task-xyz")
	assert.False(t, ok)
}
