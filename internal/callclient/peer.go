package callclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/qrave1/MentorCall/internal/domain/apperr"
)

// Виды сигналов согласования
const (
	SignalOffer     = "offer"
	SignalAnswer    = "answer"
	SignalCandidate = "candidate"
)

// Signal - содержимое opaque-поля data события signal. Релей его не читает.
type Signal struct {
	Kind      string                   `json:"kind"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

// SignalFunc отправляет сигнал собеседнику через релей
type SignalFunc func(data []byte)

// Peer - медиасоединение со вторым участником
type Peer interface {
	Offer(ctx context.Context) error
	HandleSignal(ctx context.Context, data []byte) error
	Close() error
}

// PeerFactory создает Peer при входе в звонок
type PeerFactory func(ctx context.Context, send SignalFunc) (Peer, error)

// PionPeer - Peer на pion/webrtc с одной аудиодорожкой в каждую сторону
type PionPeer struct {
	log  *zap.Logger
	conn *webrtc.PeerConnection

	audioTrack *webrtc.TrackLocalStaticSample
	source     MediaSource
	recorder   Recorder
	send       SignalFunc

	mu                sync.Mutex
	pendingCandidates []webrtc.ICECandidateInit

	pumpOnce sync.Once
	cancel   context.CancelFunc
	ctx      context.Context
}

// NewPionPeerFactory - фабрика PionPeer; recorder может быть nil
func NewPionPeerFactory(log *zap.Logger, iceServers []webrtc.ICEServer, source MediaSource, recorder Recorder) PeerFactory {
	return func(ctx context.Context, send SignalFunc) (Peer, error) {
		return NewPionPeer(ctx, log, iceServers, source, recorder, send)
	}
}

func NewPionPeer(
	ctx context.Context,
	log *zap.Logger,
	iceServers []webrtc.ICEServer,
	source MediaSource,
	recorder Recorder,
	send SignalFunc,
) (*PionPeer, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	audioTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "MentorCall",
	)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("create audio track: %w", err)
	}

	sender, err := pc.AddTrack(audioTrack)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("add audio track: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)

	p := &PionPeer{
		log:        log,
		conn:       pc,
		audioTrack: audioTrack,
		source:     source,
		recorder:   recorder,
		send:       send,
		ctx:        ctx,
		cancel:     cancel,
	}

	// RTCP надо вычитывать, иначе не работают перехватчики
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	pc.OnTrack(p.onTrack)

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}

		candidate := c.ToJSON()
		p.emit(Signal{Kind: SignalCandidate, Candidate: &candidate})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Info("peer connection state changed", zap.String("state", state.String()))

		if state == webrtc.PeerConnectionStateConnected {
			p.pumpOnce.Do(func() { go p.pump() })
		}
	})

	return p, nil
}

func (p *PionPeer) onTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}

	go func() {
		for {
			select {
			case <-p.ctx.Done():
				return
			default:
			}

			pkt, _, err := track.ReadRTP()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					p.log.Error("RTP read error", zap.Error(err))
				}

				return
			}

			if p.recorder == nil {
				continue
			}

			if err = p.recorder.WriteRTP(pkt); err != nil {
				p.log.Debug("record RTP", zap.Error(err))
			}
		}
	}()
}

// pump отдает кадры источника в дорожку в реальном темпе
func (p *PionPeer) pump() {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-timer.C:
		}

		sample, err := p.source.NextSample()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.log.Warn("read media sample", zap.Error(err), zap.String("source", p.source.Name()))
			}

			return
		}

		if err = p.audioTrack.WriteSample(sample); err != nil {
			p.log.Debug("write sample", zap.Error(err))
		}

		timer.Reset(sample.Duration)
	}
}

func (p *PionPeer) Offer(ctx context.Context) error {
	offer, err := p.conn.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("%w: create offer: %w", apperr.ErrNegotiation, err)
	}

	if err = p.conn.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("%w: set local offer: %w", apperr.ErrNegotiation, err)
	}

	p.emit(Signal{Kind: SignalOffer, SDP: offer.SDP})

	return nil
}

func (p *PionPeer) HandleSignal(ctx context.Context, data []byte) error {
	var sig Signal
	if err := json.Unmarshal(data, &sig); err != nil {
		return fmt.Errorf("%w: malformed signal: %w", apperr.ErrNegotiation, err)
	}

	switch sig.Kind {
	case SignalOffer:
		if err := p.setRemote(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sig.SDP}); err != nil {
			return err
		}

		answer, err := p.conn.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("%w: create answer: %w", apperr.ErrNegotiation, err)
		}

		if err = p.conn.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("%w: set local answer: %w", apperr.ErrNegotiation, err)
		}

		p.emit(Signal{Kind: SignalAnswer, SDP: answer.SDP})

		return nil

	case SignalAnswer:
		return p.setRemote(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sig.SDP})

	case SignalCandidate:
		if sig.Candidate == nil {
			return fmt.Errorf("%w: empty candidate", apperr.ErrNegotiation)
		}

		// Кандидаты до remote description копим
		if p.conn.RemoteDescription() == nil {
			p.mu.Lock()
			p.pendingCandidates = append(p.pendingCandidates, *sig.Candidate)
			p.mu.Unlock()

			return nil
		}

		if err := p.conn.AddICECandidate(*sig.Candidate); err != nil {
			return fmt.Errorf("%w: add candidate: %w", apperr.ErrNegotiation, err)
		}

		return nil

	default:
		return fmt.Errorf("%w: unknown signal kind %q", apperr.ErrNegotiation, sig.Kind)
	}
}

func (p *PionPeer) setRemote(desc webrtc.SessionDescription) error {
	if err := p.conn.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("%w: set remote %s: %w", apperr.ErrNegotiation, desc.Type, err)
	}

	p.mu.Lock()
	pending := p.pendingCandidates
	p.pendingCandidates = nil
	p.mu.Unlock()

	for _, c := range pending {
		if err := p.conn.AddICECandidate(c); err != nil {
			p.log.Warn("add buffered candidate", zap.Error(err))
		}
	}

	return nil
}

func (p *PionPeer) emit(sig Signal) {
	data, err := json.Marshal(sig)
	if err != nil {
		p.log.Error("marshal signal", zap.Error(err))
		return
	}

	p.send(data)
}

// Close останавливает захват и закрывает соединение
func (p *PionPeer) Close() error {
	p.cancel()

	err := p.conn.Close()

	if p.source != nil {
		err = errors.Join(err, p.source.Close())
	}

	return err
}
