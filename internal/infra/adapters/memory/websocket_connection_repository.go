package memory

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/qrave1/MentorCall/internal/application/constant"
	"github.com/qrave1/MentorCall/internal/application/metric"
)

// WebsocketConnectionRepository интерфейс для работы с активными сокетами в памяти.
// Write - единственный путь отправки в сокет, запись сериализуется на каждом соединении.
type WebsocketConnectionRepository interface {
	Add(userID uuid.UUID, conn *websocket.Conn)
	// Remove удаляет соединение, только если оно все еще текущее для пользователя
	Remove(userID uuid.UUID, conn *websocket.Conn)

	// Write возвращает false, если пользователь не подключен или запись упала
	Write(userID uuid.UUID, payload any) bool
	IsConnected(userID uuid.UUID) bool
	GetAllConnected() []uuid.UUID
}

type safeWS struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

type wsConnectionRepository struct {
	log *zap.Logger

	// wsConns хранит map[user_id]*ws.conn
	wsConns map[uuid.UUID]*safeWS

	mu sync.RWMutex
}

func NewWSConnectionRepository(log *zap.Logger) WebsocketConnectionRepository {
	return &wsConnectionRepository{
		log:     log,
		wsConns: make(map[uuid.UUID]*safeWS, 10),
	}
}

func (w *wsConnectionRepository) Add(userID uuid.UUID, conn *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Повторное подключение вытесняет старый сокет
	if old, exists := w.wsConns[userID]; exists {
		_ = old.conn.Close()
	} else {
		metric.IncrementWSActiveConnections()
	}

	w.wsConns[userID] = &safeWS{conn: conn}
}

func (w *wsConnectionRepository) Remove(userID uuid.UUID, conn *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()

	current, exists := w.wsConns[userID]
	if !exists || current.conn != conn {
		return
	}

	delete(w.wsConns, userID)

	metric.DecrementWSActiveConnections()
}

func (w *wsConnectionRepository) Write(userID uuid.UUID, payload any) bool {
	safews, ok := w.getSafeWS(userID)
	if !ok {
		return false
	}

	safews.mu.Lock()
	defer safews.mu.Unlock()

	if err := safews.conn.WriteJSON(payload); err != nil {
		w.log.Error(
			"write to websocket",
			zap.Error(err),
			zap.Stringer(constant.UserID, userID),
		)

		return false
	}

	return true
}

func (w *wsConnectionRepository) IsConnected(userID uuid.UUID) bool {
	_, ok := w.getSafeWS(userID)
	return ok
}

func (w *wsConnectionRepository) getSafeWS(userID uuid.UUID) (*safeWS, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	conn, ok := w.wsConns[userID]
	return conn, ok
}

func (w *wsConnectionRepository) GetAllConnected() []uuid.UUID {
	w.mu.RLock()
	defer w.mu.RUnlock()

	userIDs := make([]uuid.UUID, 0, len(w.wsConns))

	for userID := range w.wsConns {
		userIDs = append(userIDs, userID)
	}

	return userIDs
}
