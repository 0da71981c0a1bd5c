package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// intentAPI - часть клиента Stripe, которой пользуется шлюз
type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeGateway struct {
	intents  intentAPI
	currency string
}

func NewStripeGateway(secretKey, currency string) Gateway {
	sc := &client.API{}
	sc.Init(secretKey, nil)

	return &stripeGateway{intents: sc.PaymentIntents, currency: currency}
}

func (g *stripeGateway) CreateIntent(ctx context.Context, sessionID uuid.UUID, amount float64) (Intent, error) {
	cents, err := toCents(amount)
	if err != nil {
		return Intent{}, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(cents),
		Currency: stripe.String(g.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("session_id", sessionID.String())

	pi, err := g.intents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("create payment intent: %w", err)
	}

	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (g *stripeGateway) IsAuthorized(ctx context.Context, intentID string) (bool, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.intents.Get(intentID, params)
	if err != nil {
		return false, fmt.Errorf("get payment intent: %w", err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded, stripe.PaymentIntentStatusRequiresCapture:
		return true, nil
	default:
		return false, nil
	}
}
