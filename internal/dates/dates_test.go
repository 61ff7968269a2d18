package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateTimeLayouts(t *testing.T) {
	p := NewParser()
	want := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	for _, in := range []string{
		"2024-05-01T09:30:00Z",
		"2024-05-01T09:30:00",
		"2024-05-01T09:30",
		"2024-05-01 09:30:00",
		" 2024-05-01 09:30 ",
	} {
		t.Run(in, func(t *testing.T) {
			got, err := p.DateTime(in)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, want.Equal(*got), got.String())
		})
	}
}

func TestDateTruncates(t *testing.T) {
	p := NewParser()
	got, err := p.Date("2024-05-01T09:30:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), *got)
}

func TestEmptyAndUnparsable(t *testing.T) {
	p := NewParser()

	got, err := p.Date("")
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = p.DateTime("not a date")
	assert.ErrorIs(t, err, ErrUnparsable)
	assert.Nil(t, got)

	_, err = p.Date("2024-13-45")
	assert.ErrorIs(t, err, ErrUnparsable)
}

func TestNaturalLanguage(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := NewParser(WithNatural(), WithClock(func() time.Time { return base }))

	got, err := p.Date("tomorrow")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), *got)

	_, err = NewParser().Date("tomorrow")
	assert.ErrorIs(t, err, ErrUnparsable)
}
