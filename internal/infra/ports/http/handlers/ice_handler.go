package handlers

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/MentorCall/internal/application/config"
)

const turnCredentialTTL = time.Hour

type IceHandler struct {
	cfg *config.Config
	now func() time.Time
}

func NewIceHandler(cfg *config.Config) *IceHandler {
	return &IceHandler{cfg: cfg, now: time.Now}
}

// IceServers отдает STUN и, если настроен coturn, TURN с временными кредами
func (h *IceHandler) IceServers(c echo.Context) error {
	servers := h.cfg.ICEServers()

	secret := h.cfg.CoturnServer.Secret
	if secret == "" {
		return c.JSON(http.StatusOK, servers)
	}

	username, password := turnCredentials(secret, h.now().Add(turnCredentialTTL))

	for i := range servers {
		if len(servers[i].URLs) > 0 && strings.HasPrefix(servers[i].URLs[0], "turn:") {
			servers[i].Username = username
			servers[i].Credential = password
		}
	}

	return c.JSON(http.StatusOK, servers)
}

// turnCredentials - REST-креды coturn (use-auth-secret): имя = время истечения, пароль = HMAC-SHA1 имени
func turnCredentials(secret string, expiresAt time.Time) (string, string) {
	username := strconv.FormatInt(expiresAt.Unix(), 10)

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(username))

	return username, base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
