package callclient

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

// Recorder пишет входящий звук собеседника
type Recorder interface {
	WriteRTP(pkt *rtp.Packet) error
	Path() string
	Close() error
}

var errRecorderClosed = errors.New("recorder closed")

// OggRecorder складывает opus RTP в Ogg файл
type OggRecorder struct {
	mu     sync.Mutex
	path   string
	writer *oggwriter.OggWriter
	closed bool
}

func NewOggRecorder(path string) (*OggRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create recording dir: %w", err)
	}

	writer, err := oggwriter.New(path, opusSampleRate, 2)
	if err != nil {
		return nil, fmt.Errorf("create ogg writer: %w", err)
	}

	return &OggRecorder{path: path, writer: writer}, nil
}

func (r *OggRecorder) WriteRTP(pkt *rtp.Packet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errRecorderClosed
	}

	return r.writer.WriteRTP(pkt)
}

func (r *OggRecorder) Path() string {
	return r.path
}

// Close дописывает последнюю страницу; повторный вызов ничего не делает
func (r *OggRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true

	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("finalize recording: %w", err)
	}

	return nil
}
