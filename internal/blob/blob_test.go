package blob

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	key, err := ObjectKey("snapshots/", "m-1", "image/png", now)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "snapshots/m-1/20260304T050607Z-"), key)
	assert.True(t, strings.HasSuffix(key, ".png"), key)

	other, err := ObjectKey("snapshots/", "m-1", "image/png", now)
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestObjectKey_RejectsPathSegments(t *testing.T) {
	for _, id := range []string{"", ".", "..", "a/b", `a\b`, "../etc"} {
		_, err := ObjectKey("", id, "image/png", time.Now())
		assert.ErrorIs(t, err, ErrInvalidMissionID, id)
	}
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".png", Extension("image/png"))
	assert.Equal(t, ".jpg", Extension("image/jpeg"))
	assert.Equal(t, ".bin", Extension("application/octet-stream"))
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.org/a/b.png", PublicURL("https://cdn.example.org/", "/a/b.png"))
	assert.Equal(t, "/snapshots/a.png", PublicURL("/snapshots", "a.png"))
}
