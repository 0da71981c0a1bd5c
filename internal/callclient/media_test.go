package callclient

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSyntheticSourceNeverEnds(t *testing.T) {
	src := NewSyntheticSource()

	for range 3 {
		sample, err := src.NextSample()
		require.NoError(t, err)
		assert.Equal(t, opusSilence, sample.Data)
		assert.Equal(t, opusFrame, sample.Duration)
	}
}

func TestSelectMediaSourceFallsBack(t *testing.T) {
	log := zap.NewNop()

	failing := func(context.Context) (MediaSource, error) {
		return nil, errors.New("no microphone")
	}
	assert.IsType(t, &SyntheticSource{}, SelectMediaSource(context.Background(), log, failing, time.Second))

	hanging := func(ctx context.Context) (MediaSource, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	started := time.Now()
	assert.IsType(t, &SyntheticSource{}, SelectMediaSource(context.Background(), log, hanging, 20*time.Millisecond))
	assert.Less(t, time.Since(started), time.Second)

	assert.IsType(t, &SyntheticSource{}, SelectMediaSource(context.Background(), log, nil, time.Second))

	missing := FileAcquirer(filepath.Join(t.TempDir(), "missing.ogg"))
	assert.IsType(t, &SyntheticSource{}, SelectMediaSource(context.Background(), log, missing, time.Second))
}

func TestRecordingPlaysBackAsFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "call.ogg")

	rec, err := NewOggRecorder(path)
	require.NoError(t, err)

	for i := range 3 {
		require.NoError(t, rec.WriteRTP(&rtp.Packet{
			Header:  rtp.Header{Version: 2, PayloadType: 111, SequenceNumber: uint16(i), Timestamp: uint32(960 * i)},
			Payload: opusSilence,
		}))
	}

	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())
	assert.Error(t, rec.WriteRTP(&rtp.Packet{Payload: opusSilence}))

	src := SelectMediaSource(context.Background(), zap.NewNop(), FileAcquirer(path), time.Second)
	require.IsType(t, &FileSource{}, src)
	defer src.Close()

	for range 3 {
		sample, err := src.NextSample()
		require.NoError(t, err)
		assert.Equal(t, opusSilence, sample.Data)
		assert.Positive(t, sample.Duration)
	}

	_, err = src.NextSample()
	assert.ErrorIs(t, err, io.EOF)
}
