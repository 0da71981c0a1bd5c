package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/MentorCall/internal/domain/apperr"
)

const defaultRecordingName = "recording.webm"

// RecordingStore сохраняет записи сессий
type RecordingStore interface {
	// Save возвращает путь, по которому лежит запись
	Save(ctx context.Context, sessionID uuid.UUID, filename string, r io.Reader) (string, error)
}

type diskRecordingStore struct {
	dir      string
	maxBytes int64
	now      func() time.Time
}

// NewDiskRecordingStore пишет записи в dir/<session_id>/<unix>_<name>
func NewDiskRecordingStore(dir string, maxBytes int64) RecordingStore {
	return &diskRecordingStore{dir: dir, maxBytes: maxBytes, now: time.Now}
}

func (s *diskRecordingStore) Save(ctx context.Context, sessionID uuid.UUID, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sessionDir := filepath.Join(s.dir, sessionID.String())
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return "", fmt.Errorf("create recordings dir: %w", err)
	}

	path := filepath.Join(sessionDir, strconv.FormatInt(s.now().Unix(), 10)+"_"+sanitize(filename))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create recording file: %w", err)
	}

	written, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()

	switch {
	case err != nil:
		_ = os.Remove(path)
		return "", fmt.Errorf("write recording: %w", err)
	case written > s.maxBytes:
		_ = os.Remove(path)
		return "", fmt.Errorf("recording exceeds %d bytes: %w", s.maxBytes, apperr.ErrInvalidInput)
	case closeErr != nil:
		_ = os.Remove(path)
		return "", fmt.Errorf("close recording file: %w", closeErr)
	}

	return path, nil
}

func sanitize(filename string) string {
	name := filepath.Base(filepath.Clean("/" + filename))

	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)

	if name == "" || name == "." || name == "_" {
		return defaultRecordingName
	}

	return name
}
