package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/qrave1/MentorCall/internal/application/config"
	"github.com/qrave1/MentorCall/internal/application/constant"
	"github.com/qrave1/MentorCall/internal/application/metric"
	"github.com/qrave1/MentorCall/internal/domain/apperr"
	"github.com/qrave1/MentorCall/internal/domain/events"
	"github.com/qrave1/MentorCall/internal/infra/adapters/memory"
	"github.com/qrave1/MentorCall/internal/usecase"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

type WebSocketHandler struct {
	log      *zap.Logger
	upgrader *websocket.Upgrader

	wsRepo           memory.WebsocketConnectionRepository
	signalingUsecase usecase.SignalingUsecase
}

func NewWebSocketHandler(
	cfg *config.Config,
	log *zap.Logger,
	signalingUsecase usecase.SignalingUsecase,
	wsRepo memory.WebsocketConnectionRepository,
) *WebSocketHandler {
	return &WebSocketHandler{
		log: log,
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.Debug {
					return true
				}

				origin := r.Header.Get("Origin")

				return origin == "" || origin == cfg.Domain
			},
		},
		wsRepo:           wsRepo,
		signalingUsecase: signalingUsecase,
	}
}

func (h *WebSocketHandler) Handle(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Error("websocket upgrade error", zap.Error(err))
		return err
	}

	h.wsRepo.Add(userID, ws)

	ctx, cancel := context.WithCancel(c.Request().Context())

	defer func() {
		cancel()

		h.wsRepo.Remove(userID, ws)
		_ = ws.Close()

		// Сокет вытеснен новым подключением - комнаты остаются за ним
		if h.wsRepo.IsConnected(userID) {
			return
		}

		if err := h.signalingUsecase.HandleLeave(context.WithoutCancel(ctx), userID); err != nil {
			h.log.Error("handle leave", zap.Error(err), zap.Stringer(constant.UserID, userID))
		}
	}()

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.keepAlive(ctx, ws)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("websocket read error", zap.Error(err), zap.Stringer(constant.UserID, userID))
			}

			return nil
		}

		var msg events.Message
		if err = json.Unmarshal(raw, &msg); err != nil {
			h.reject(userID, "", fmt.Errorf("malformed message: %w", apperr.ErrInvalidInput))
			continue
		}

		if err = h.handleMessage(ctx, userID, msg); err != nil {
			h.reject(userID, msg.Type, err)
			continue
		}

		metric.RecordSignalingEvent(msg.Type)
	}
}

// keepAlive шлет ping; WriteControl можно вызывать параллельно с обычной записью
func (h *WebSocketHandler) keepAlive(ctx context.Context, ws *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				h.log.Debug("ping failed", zap.Error(err))
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// reject отправляет ошибку только отправителю события
func (h *WebSocketHandler) reject(userID uuid.UUID, eventType string, err error) {
	if apperr.HTTPStatus(err) >= http.StatusInternalServerError {
		h.log.Error("handle message", zap.Error(err), zap.String(constant.Event, eventType), zap.Stringer(constant.UserID, userID))
	} else {
		h.log.Debug("message rejected", zap.Error(err), zap.String(constant.Event, eventType), zap.Stringer(constant.UserID, userID))
	}

	h.wsRepo.Write(userID, events.Error(publicMessage(err)))
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, userID uuid.UUID, msg events.Message) error {
	switch msg.Type {
	case events.TypeJoinSessionRoom:
		ev, err := decode[events.JoinSessionRoomEvent](msg)
		if err != nil {
			return err
		}

		return h.signalingUsecase.HandleJoinSessionRoom(ctx, userID, ev)

	case events.TypeAskToJoin:
		ev, err := decode[events.AskToJoinEvent](msg)
		if err != nil {
			return err
		}

		return h.signalingUsecase.HandleAskToJoin(ctx, userID, ev)

	case events.TypeAcceptJoin:
		ev, err := decode[events.SessionEvent](msg)
		if err != nil {
			return err
		}

		return h.signalingUsecase.HandleAcceptJoin(ctx, userID, ev)

	case events.TypeSignal:
		ev, err := decode[events.SignalEvent](msg)
		if err != nil {
			return err
		}

		return h.signalingUsecase.HandleSignal(ctx, userID, ev)

	case events.TypeCodeChange, events.TypeEditorToggle:
		ev, err := decode[events.SessionEvent](msg)
		if err != nil {
			return err
		}

		return h.signalingUsecase.HandleEditorEvent(ctx, userID, msg.Type, ev.SessionID, msg.Data)

	case events.TypeEarlyEndRequest:
		ev, err := decode[events.EarlyEndRequestEvent](msg)
		if err != nil {
			return err
		}

		return h.signalingUsecase.HandleEarlyEndRequest(ctx, userID, ev)

	case events.TypeAcceptEarlyEnd:
		ev, err := decode[events.SessionEvent](msg)
		if err != nil {
			return err
		}

		return h.signalingUsecase.HandleAcceptEarlyEnd(ctx, userID, ev)

	case events.TypeRejectEarlyEnd:
		ev, err := decode[events.SessionEvent](msg)
		if err != nil {
			return err
		}

		return h.signalingUsecase.HandleRejectEarlyEnd(ctx, userID, ev)

	case events.TypeSessionEnded:
		ev, err := decode[events.SessionEvent](msg)
		if err != nil {
			return err
		}

		return h.signalingUsecase.HandleSessionEnded(ctx, userID, ev)

	case events.TypeSendMessage:
		ev, err := decode[events.SendMessageEvent](msg)
		if err != nil {
			return err
		}

		return h.signalingUsecase.HandleSendMessage(ctx, userID, ev)

	case events.TypePing:
		h.signalingUsecase.HandlePing(ctx, userID)

		return nil

	default:
		return fmt.Errorf("unknown message type %q: %w", msg.Type, apperr.ErrInvalidInput)
	}
}

func decode[T any](msg events.Message) (T, error) {
	var ev T

	if len(msg.Data) == 0 {
		return ev, fmt.Errorf("%s: empty payload: %w", msg.Type, apperr.ErrInvalidInput)
	}

	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return ev, fmt.Errorf("%s: malformed payload: %w", msg.Type, apperr.ErrInvalidInput)
	}

	return ev, nil
}
