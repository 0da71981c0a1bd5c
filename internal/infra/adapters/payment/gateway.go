package payment

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/qrave1/MentorCall/internal/domain/apperr"
)

// Intent - созданный платеж; ClientSecret уходит на фронт для подтверждения
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

type Gateway interface {
	CreateIntent(ctx context.Context, sessionID uuid.UUID, amount float64) (Intent, error)
	// IsAuthorized - платеж прошел или средства заблокированы
	IsAuthorized(ctx context.Context, intentID string) (bool, error)
}

func toCents(amount float64) (int64, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("amount %v: %w", amount, apperr.ErrInvalidInput)
	}

	return int64(math.Round(amount * 100)), nil
}

const localPrefix = "local_"

// localGateway - шлюз для разработки без ключа Stripe, любой выданный им платеж считается оплаченным
type localGateway struct{}

func NewLocalGateway() Gateway {
	return localGateway{}
}

func (localGateway) CreateIntent(ctx context.Context, sessionID uuid.UUID, amount float64) (Intent, error) {
	if _, err := toCents(amount); err != nil {
		return Intent{}, err
	}

	id := localPrefix + "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	return Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + sessionID.String(),
	}, nil
}

func (localGateway) IsAuthorized(ctx context.Context, intentID string) (bool, error) {
	return strings.HasPrefix(intentID, localPrefix), nil
}
