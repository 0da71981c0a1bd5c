package callclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qrave1/MentorCall/internal/domain/events"
)

// ErrTransportClosed - соединение с релеем потеряно
var ErrTransportClosed = errors.New("transport closed")

// Transport - упорядоченный канал событий до релея
type Transport interface {
	Send(ctx context.Context, msg events.Message) error
	Receive(ctx context.Context) (events.Message, error)
	Close() error
}

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
)

// WSTransport - Transport поверх gorilla/websocket
type WSTransport struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	inbox   chan events.Message
	done    chan struct{}

	closeOnce sync.Once
	readErr   error
}

// DialWS подключается к ws://host/api/v1/ws, токен уходит и в cookie, и в заголовке
func DialWS(ctx context.Context, url, token string) (*WSTransport, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
		header.Set("Cookie", (&http.Cookie{Name: "jwt", Value: token}).String())
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	return NewWSTransport(conn), nil
}

func NewWSTransport(conn *websocket.Conn) *WSTransport {
	t := &WSTransport{
		conn:  conn,
		inbox: make(chan events.Message, 64),
		done:  make(chan struct{}),
	}

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(wsWriteWait))
	})

	go t.readLoop()

	return t
}

func (t *WSTransport) readLoop() {
	defer close(t.inbox)

	for {
		var msg events.Message
		if err := t.conn.ReadJSON(&msg); err != nil {
			t.readErr = err
			return
		}

		_ = t.conn.SetReadDeadline(time.Now().Add(wsPongWait))

		select {
		case t.inbox <- msg:
		case <-t.done:
			return
		}
	}
}

func (t *WSTransport) Send(ctx context.Context, msg events.Message) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	deadline := time.Now().Add(wsWriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	_ = t.conn.SetWriteDeadline(deadline)

	if err := t.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, errors.Join(ErrTransportClosed, err))
	}

	return nil
}

func (t *WSTransport) Receive(ctx context.Context) (events.Message, error) {
	select {
	case msg, ok := <-t.inbox:
		if !ok {
			return events.Message{}, fmt.Errorf("receive: %w", errors.Join(ErrTransportClosed, t.readErr))
		}

		return msg, nil
	case <-ctx.Done():
		return events.Message{}, ctx.Err()
	}
}

func (t *WSTransport) Close() error {
	var err error

	t.closeOnce.Do(func() {
		close(t.done)

		t.writeMu.Lock()
		_ = t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsWriteWait),
		)
		t.writeMu.Unlock()

		err = t.conn.Close()
	})

	return err
}
