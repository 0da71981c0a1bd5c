package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/MentorCall/internal/domain/apperr"
)

func TestDiskRecordingStoreSave(t *testing.T) {
	dir := t.TempDir()
	store := &diskRecordingStore{dir: dir, maxBytes: 1024, now: func() time.Time { return time.Unix(1700000000, 0) }}
	sessionID := uuid.New()

	path, err := store.Save(context.Background(), sessionID, "call.ogg", strings.NewReader("opus"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, sessionID.String(), "1700000000_call.ogg"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "opus", string(data))
}

func TestDiskRecordingStoreRejectsOversized(t *testing.T) {
	dir := t.TempDir()
	store := NewDiskRecordingStore(dir, 3)
	sessionID := uuid.New()

	_, err := store.Save(context.Background(), sessionID, "call.ogg", strings.NewReader("four"))
	require.ErrorIs(t, err, apperr.ErrInvalidInput)

	entries, err := os.ReadDir(filepath.Join(dir, sessionID.String()))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "passwd", sanitize("../../etc/passwd"))
	assert.Equal(t, "my_call.ogg", sanitize("my call.ogg"))
	assert.Equal(t, defaultRecordingName, sanitize(""))
	assert.Equal(t, defaultRecordingName, sanitize("/"))
}
