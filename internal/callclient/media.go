package callclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"go.uber.org/zap"

	"github.com/qrave1/MentorCall/internal/domain/apperr"
)

const (
	opusSampleRate = 48000
	opusFrame      = 20 * time.Millisecond
)

// opusSilence - opus-кадр тишины длиной 20 мс
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// MediaSource отдает кадры локального аудио. io.EOF - источник закончился.
type MediaSource interface {
	Name() string
	NextSample() (media.Sample, error)
	Close() error
}

// Acquirer открывает настоящий источник медиа
type Acquirer func(ctx context.Context) (MediaSource, error)

// SyntheticSource бесконечно отдает тишину, звонок идет и без устройства
type SyntheticSource struct{}

func NewSyntheticSource() *SyntheticSource {
	return &SyntheticSource{}
}

func (s *SyntheticSource) Name() string { return "synthetic" }

func (s *SyntheticSource) NextSample() (media.Sample, error) {
	return media.Sample{Data: append([]byte(nil), opusSilence...), Duration: opusFrame}, nil
}

func (s *SyntheticSource) Close() error { return nil }

// FileSource - заглушка устройства: Ogg/Opus файл
type FileSource struct {
	path        string
	file        io.Closer
	reader      *oggreader.OggReader
	lastGranule uint64
}

func OpenFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open media file: %w", err)
	}

	reader, _, err := oggreader.NewWith(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read ogg header: %w", err)
	}

	return &FileSource{path: path, file: f, reader: reader}, nil
}

// FileAcquirer - Acquirer для FileSource
func FileAcquirer(path string) Acquirer {
	return func(ctx context.Context) (MediaSource, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		return OpenFileSource(path)
	}
}

func (s *FileSource) Name() string { return "file:" + s.path }

func (s *FileSource) NextSample() (media.Sample, error) {
	for {
		page, header, err := s.reader.ParseNextPage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return media.Sample{}, io.EOF
			}

			return media.Sample{}, fmt.Errorf("parse ogg page: %w", err)
		}

		// Страница с тегами не несет звука
		if bytes.HasPrefix(page, []byte("OpusTags")) {
			continue
		}

		samples := header.GranulePosition - s.lastGranule
		s.lastGranule = header.GranulePosition

		duration := time.Duration(float64(samples) / opusSampleRate * float64(time.Second))
		if duration <= 0 {
			duration = opusFrame
		}

		return media.Sample{Data: page, Duration: duration}, nil
	}
}

func (s *FileSource) Close() error {
	return s.file.Close()
}

// SelectMediaSource делает одну попытку открыть устройство за timeout.
// При ошибке или таймауте возвращается SyntheticSource, звонок не прерывается.
func SelectMediaSource(ctx context.Context, log *zap.Logger, acquire Acquirer, timeout time.Duration) MediaSource {
	if acquire == nil {
		return NewSyntheticSource()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		src MediaSource
		err error
	}

	done := make(chan result, 1)
	go func() {
		src, err := acquire(ctx)
		done <- result{src: src, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			log.Info("media source acquired", zap.String("source", r.src.Name()))
			return r.src
		}

		log.Warn("falling back to synthetic media", zap.Error(fmt.Errorf("%w: %w", apperr.ErrMediaAcquisition, r.err)))

	case <-ctx.Done():
		log.Warn("falling back to synthetic media", zap.Error(fmt.Errorf("%w: %w", apperr.ErrMediaAcquisition, ctx.Err())))

		// Опоздавший источник никому не нужен
		go func() {
			if r := <-done; r.src != nil {
				if err := r.src.Close(); err != nil {
					log.Debug("close late media source", zap.Error(err), zap.String("source", r.src.Name()))
				}
			}
		}()
	}

	return NewSyntheticSource()
}
