package turn

import (
	"errors"
	"fmt"
	"net"

	"github.com/pion/logging"
	"github.com/pion/turn/v4"
	"go.uber.org/zap"

	"github.com/qrave1/MentorCall/internal/application/config"
)

// Server - встроенный TURN для окружений без coturn.
// Креды те же, что выдает /api/v1/ice: REST-схема с общим секретом.
type Server struct {
	log    *zap.Logger
	server *turn.Server
}

func Start(log *zap.Logger, cfg config.TurnConfig, secret string) (*Server, error) {
	if secret == "" {
		return nil, errors.New("turn server needs COTURN_SECRET")
	}

	udpListener, err := net.ListenPacket("udp4", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("udp listen: %w", err)
	}

	tcpListener, err := net.Listen("tcp4", cfg.Listen)
	if err != nil {
		_ = udpListener.Close()
		return nil, fmt.Errorf("tcp listen: %w", err)
	}

	relayAddressGenerator := &turn.RelayAddressGeneratorStatic{
		RelayAddress: net.ParseIP(cfg.PublicIP),
		Address:      "0.0.0.0",
	}

	loggerFactory := logging.NewDefaultLoggerFactory()

	server, err := turn.NewServer(turn.ServerConfig{
		Realm:         cfg.Realm,
		AuthHandler:   turn.LongTermTURNRESTAuthHandler(secret, loggerFactory.NewLogger("turn-auth")),
		LoggerFactory: loggerFactory,
		PacketConnConfigs: []turn.PacketConnConfig{
			{
				PacketConn:            udpListener,
				RelayAddressGenerator: relayAddressGenerator,
			},
		},
		ListenerConfigs: []turn.ListenerConfig{
			{
				Listener:              tcpListener,
				RelayAddressGenerator: relayAddressGenerator,
			},
		},
	})
	if err != nil {
		_ = udpListener.Close()
		_ = tcpListener.Close()
		return nil, fmt.Errorf("new turn server: %w", err)
	}

	log.Info(
		"TURN server started",
		zap.String("udp", udpListener.LocalAddr().String()),
		zap.String("tcp", tcpListener.Addr().String()),
		zap.String("realm", cfg.Realm),
	)

	return &Server{log: log, server: server}, nil
}

func (s *Server) Close() error {
	if err := s.server.Close(); err != nil {
		return fmt.Errorf("close turn server: %w", err)
	}

	s.log.Info("TURN server stopped")

	return nil
}
