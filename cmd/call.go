package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qrave1/MentorCall/internal/application/logger"
	"github.com/qrave1/MentorCall/internal/callclient"
	"github.com/qrave1/MentorCall/internal/domain/models"
)

const mediaAcquireTimeout = 3 * time.Second

type callFlags struct {
	server    string
	token     string
	sessionID string
	name      string
	media     string
	recordDir string
	endAfter  time.Duration
	debug     bool
}

var callOpts callFlags

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Join a session call as a headless participant",
	Long: "Connects to the relay as the token's owner, waits for the scheduled start, " +
		"asks to join (student) or accepts the request (developer), records the counterpart " +
		"and uploads the recording when the call ends.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(cmd.Context(), callOpts)
	},
}

func init() {
	f := callCmd.Flags()
	f.StringVar(&callOpts.server, "server", "http://localhost:3000", "MentorCall server address")
	f.StringVar(&callOpts.token, "token", os.Getenv("MENTORCALL_TOKEN"), "JWT issued by /api/auth/login")
	f.StringVar(&callOpts.sessionID, "session", "", "session id")
	f.StringVar(&callOpts.name, "name", "", "name shown to the developer in the join request")
	f.StringVar(&callOpts.media, "media", "", "Ogg/Opus file used as the microphone")
	f.StringVar(&callOpts.recordDir, "record-dir", "./recordings", "where the local recording is written")
	f.DurationVar(&callOpts.endAfter, "end-after", 0, "end the call after this long in the call (0 waits for the counterpart)")
	f.BoolVar(&callOpts.debug, "debug", false, "verbose logs")

	_ = callCmd.MarkFlagRequired("session")

	rootCmd.AddCommand(callCmd)
}

func runCall(ctx context.Context, opts callFlags) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log, err := logger.New(opts.debug)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	sessionID, err := uuid.Parse(opts.sessionID)
	if err != nil {
		return fmt.Errorf("parse session id: %w", err)
	}

	base := strings.TrimRight(opts.server, "/")
	api := callclient.NewHTTPSessionAPI(base+"/api/v1", opts.token)

	me, err := api.Me(ctx)
	if err != nil {
		return err
	}

	session, err := api.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	iceServers, err := api.ICEServers(ctx)
	if err != nil {
		log.Warn("ice servers unavailable, using host candidates only", zap.Error(err))
	}

	name := opts.name
	if name == "" {
		name = me.DisplayName
	}

	recorder, err := callclient.NewOggRecorder(filepath.Join(
		opts.recordDir,
		sessionID.String(),
		fmt.Sprintf("%s_%d.ogg", me.Role, time.Now().Unix()),
	))
	if err != nil {
		return err
	}

	var acquire callclient.Acquirer
	if opts.media != "" {
		acquire = callclient.FileAcquirer(opts.media)
	}

	source := callclient.SelectMediaSource(ctx, log, acquire, mediaAcquireTimeout)

	wsURL, err := relayURL(base)
	if err != nil {
		return err
	}

	transport, err := callclient.DialWS(ctx, wsURL, opts.token)
	if err != nil {
		return err
	}
	defer transport.Close()

	call, err := callclient.NewCall(log, callclient.Options{
		Session:   session,
		UserID:    me.ID,
		Role:      me.Role,
		Name:      name,
		Transport: transport,
		API:       api,
		NewPeer:   callclient.NewPionPeerFactory(log, iceServers, source, recorder),
		Recorder:  recorder,
		Uploader:  callclient.NewUploader(log, api),
		OnPhase:   autopilot(ctx, log, opts.endAfter),
	})
	if err != nil {
		return err
	}

	log.Info("waiting for the session", zap.Time("starts_at", call.StartsAt()), zap.String("role", string(me.Role)))

	result, err := call.Run(ctx)
	if err != nil {
		return fmt.Errorf("call %s: %w", result.Phase, err)
	}

	if result.UploadErr != nil {
		log.Warn("recording kept locally", zap.Error(result.UploadErr), zap.String("path", result.RecordingPath))
	}

	log.Info("call finished", zap.String("next", string(result.Destination)))

	return nil
}

// autopilot ведет звонок без человека: студент просит войти, разработчик впускает
func autopilot(ctx context.Context, log *zap.Logger, endAfter time.Duration) func(*callclient.Call, callclient.Phase) {
	var endTimer sync.Once

	return func(c *callclient.Call, phase callclient.Phase) {
		var err error

		switch phase {
		case callclient.PhaseWaitingForJoin:
			if c.Role() == models.RoleStudent {
				err = c.AskToJoin(ctx)
			}

		case callclient.PhaseJoinRequested:
			if c.Role() == models.RoleDeveloper {
				err = c.Accept(ctx)
			}

		case callclient.PhaseInCall:
			if endAfter <= 0 {
				break
			}

			endTimer.Do(func() {
				time.AfterFunc(endAfter, func() {
					if _, err := c.End(ctx); err != nil {
						log.Warn("end call", zap.Error(err))
					}
				})
			})

		case callclient.PhaseEarlyEndRequested:
			if c.IncomingEarlyEnd() {
				_, err = c.AcceptEarlyEnd(ctx)
			}
		}

		if err != nil {
			log.Warn("autopilot action failed", zap.String("phase", string(phase)), zap.Error(err))
		}
	}
}

func relayURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server address: %w", err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1/ws"

	return u.String(), nil
}
