package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimitWith(t *testing.T) {
	assert.Equal(t, 20, NormalizeLimitWith(0, 20, 100))
	assert.Equal(t, 100, NormalizeLimitWith(500, 20, 100))
	assert.Equal(t, 7, NormalizeLimitWith(7, 20, 100))
	assert.Equal(t, 5, NormalizeLimitWith(-1, 50, 5))
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
}

func TestCursorRoundTrip(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Date(2026, 1, 5, 9, 0, 0, 123, time.UTC), ID: uuid.New()}

	parsed, err := ParseCursor(EncodeCursor(cursor))
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.True(t, cursor.CreatedAt.Equal(parsed.CreatedAt))
	assert.Equal(t, cursor.ID, parsed.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	parsed, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, parsed)

	_, err = ParseCursor("%%%")
	assert.Error(t, err)
}
