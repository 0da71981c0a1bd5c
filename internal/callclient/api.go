package callclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/qrave1/MentorCall/internal/domain/models"
	"github.com/qrave1/MentorCall/internal/infra/ports/http/dto"
)

// SessionAPI - то, что клиенту звонка нужно от REST API сессий
type SessionAPI interface {
	GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error)
	Complete(ctx context.Context, sessionID uuid.UUID) (*models.Session, error)
	SaveRecording(ctx context.Context, sessionID uuid.UUID, filename string, r io.Reader) error
}

// APIError - ответ API со статусом не 2xx
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api responded %d: %s", e.Status, e.Message)
}

// Temporary - ошибки сервера и 429 имеет смысл повторять
func (e *APIError) Temporary() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

type HTTPSessionAPI struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPSessionAPI - baseURL вида http://host:port/api/v1
func NewHTTPSessionAPI(baseURL, token string) *HTTPSessionAPI {
	return &HTTPSessionAPI{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Me - пользователь, которому выдан токен
func (a *HTTPSessionAPI) Me(ctx context.Context) (*dto.GetMeResponse, error) {
	var me dto.GetMeResponse
	if err := a.do(ctx, http.MethodGet, "/me", nil, "", &me); err != nil {
		return nil, fmt.Errorf("get me: %w", err)
	}

	return &me, nil
}

// ICEServers - STUN/TURN с временными кредами от сервера
func (a *HTTPSessionAPI) ICEServers(ctx context.Context) ([]webrtc.ICEServer, error) {
	var servers []webrtc.ICEServer
	if err := a.do(ctx, http.MethodGet, "/ice", nil, "", &servers); err != nil {
		return nil, fmt.Errorf("get ice servers: %w", err)
	}

	return servers, nil
}

func (a *HTTPSessionAPI) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	var session models.Session
	if err := a.do(ctx, http.MethodGet, "/sessions/"+sessionID.String(), nil, "", &session); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	return &session, nil
}

func (a *HTTPSessionAPI) Complete(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	var session models.Session
	if err := a.do(ctx, http.MethodPut, "/sessions/"+sessionID.String()+"/complete", nil, "", &session); err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}

	return &session, nil
}

func (a *HTTPSessionAPI) SaveRecording(ctx context.Context, sessionID uuid.UUID, filename string, r io.Reader) error {
	var body bytes.Buffer

	w := multipart.NewWriter(&body)
	if err := w.WriteField("sessionId", sessionID.String()); err != nil {
		return fmt.Errorf("write session id field: %w", err)
	}

	part, err := w.CreateFormFile("recording", filename)
	if err != nil {
		return fmt.Errorf("create recording part: %w", err)
	}

	if _, err = io.Copy(part, r); err != nil {
		return fmt.Errorf("copy recording: %w", err)
	}

	if err = w.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	if err = a.do(ctx, http.MethodPost, "/sessions/save-recording", &body, w.FormDataContentType(), nil); err != nil {
		return fmt.Errorf("save recording: %w", err)
	}

	return nil
}

func (a *HTTPSessionAPI) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &apiErr)

		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}

	if err = json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}
