package callclient

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/qrave1/MentorCall/internal/application/constant"
	"github.com/qrave1/MentorCall/internal/domain/apperr"
)

const (
	defaultUploadRetries = 4
	defaultUploadBackoff = 500 * time.Millisecond
	maxUploadBackoff     = 10 * time.Second
)

// Uploader отправляет запись с экспоненциальной паузой и потолком попыток
type Uploader struct {
	log  *zap.Logger
	api  SessionAPI
	base time.Duration

	// maxRetries - сколько повторов после первой попытки
	maxRetries uint64
}

func NewUploader(log *zap.Logger, api SessionAPI) *Uploader {
	return &Uploader{
		log:        log,
		api:        api,
		base:       defaultUploadBackoff,
		maxRetries: defaultUploadRetries,
	}
}

func (u *Uploader) WithBackoff(base time.Duration, maxRetries uint64) *Uploader {
	u.base = base
	u.maxRetries = maxRetries
	return u
}

// Upload возвращает ошибку с apperr.ErrUpload, если попытки исчерпаны
func (u *Uploader) Upload(ctx context.Context, sessionID uuid.UUID, path string) error {
	backoff := retry.WithMaxRetries(u.maxRetries, retry.WithCappedDuration(maxUploadBackoff, retry.NewExponential(u.base)))

	attempt := 0

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open recording: %w", err)
		}
		defer f.Close()

		err = u.api.SaveRecording(ctx, sessionID, filepath.Base(path), f)
		if err == nil {
			return nil
		}

		u.log.Warn(
			"recording upload attempt failed",
			zap.Error(err),
			zap.Stringer(constant.SessionID, sessionID),
			zap.Int(constant.Attempt, attempt),
		)

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return err
		}

		return retry.RetryableError(err)
	})
	if err != nil {
		return fmt.Errorf("%w after %d attempts: %w", apperr.ErrUpload, attempt, err)
	}

	u.log.Info("recording uploaded", zap.Stringer(constant.SessionID, sessionID), zap.String(constant.Path, path))

	return nil
}
