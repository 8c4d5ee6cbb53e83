// Package payment adapts Stripe to the engine's payment collaborator
// interface. The engine only needs authorize-and-capture by reference and
// refund by reference; provider wire formats stay behind this boundary.
package payment

import (
	"context"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	striperefund "github.com/stripe/stripe-go/v82/refund"

	"ms-booking/internal/logger"
)

// InitStripe sets the API key for the process.
func InitStripe(secretKey string) {
	stripe.Key = secretKey
}

type StripeGateway struct {
	Logger *logger.Logger
}

func NewStripeGateway(log *logger.Logger) *StripeGateway {
	return &StripeGateway{Logger: log}
}

// Authorize creates and confirms a payment intent for the amount and
// returns the intent id as the payment reference.
func (g *StripeGateway) Authorize(ctx context.Context, amount float64, currency string, metadata map[string]string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(toMinorUnits(amount)),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		g.Logger.Error("PAYMENT", fmt.Sprintf("Failed to create payment intent: %v", err))
		return "", fmt.Errorf("create payment intent: %w", err)
	}

	g.Logger.Info("PAYMENT", fmt.Sprintf("Created payment intent %s (%s %.2f)", intent.ID, currency, amount))
	return intent.ID, nil
}

// Refund refunds amount against a previously captured payment intent.
func (g *StripeGateway) Refund(ctx context.Context, reference string, amount float64) error {
	params := &stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(reference),
		Amount:        stripe.Int64(toMinorUnits(amount)),
	}

	if _, err := striperefund.New(params); err != nil {
		g.Logger.Error("PAYMENT", fmt.Sprintf("Failed to refund %s: %v", reference, err))
		return fmt.Errorf("refund payment intent %s: %w", reference, err)
	}

	g.Logger.Info("PAYMENT", fmt.Sprintf("Refunded %.2f on %s", amount, reference))
	return nil
}

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
