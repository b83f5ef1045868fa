package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"mymedaga-payments/internal/config"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/adapter"
	"mymedaga-payments/internal/infra/metrics"
)

var _ adapter.Provider = (*Stripe)(nil)

// Metadata keys understood by the Stripe adapter.
const (
	MetaStripeAccount  = "stripe_account"
	MetaTransactionID  = "transaction_id"
	MetaPaymentID      = "payment_id"
	MetaClientSecret   = "client_secret"
	MetaPublishableKey = "publishable_key"
)

// Stripe creates PaymentIntents through stripe-go. When the request carries a
// connected account, funds go to that account minus the platform fee.
type Stripe struct {
	base
	api        *client.API
	feePercent decimal.Decimal
}

func NewStripe(cfg config.ProviderConfig, feePercent float64, opts Options) *Stripe {
	b := newBase(model.MethodStripe, cfg, opts, "https://api.stripe.com", "https://api.stripe.com")
	var backends *stripe.Backends
	if cfg.BaseURL != "" || opts.HTTPClient != nil {
		bc := &stripe.BackendConfig{HTTPClient: b.client, LeveledLogger: &stripe.LeveledLogger{Level: stripe.LevelNull}}
		if cfg.BaseURL != "" {
			bc.URL = stripe.String(strings.TrimRight(cfg.BaseURL, "/"))
		}
		backends = &stripe.Backends{
			API:     stripe.GetBackendWithConfig(stripe.APIBackend, bc),
			Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, bc),
			Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, bc),
		}
	}
	return &Stripe{
		base:       b,
		api:        client.New(cfg.APISecret, backends),
		feePercent: decimal.NewFromFloat(feePercent),
	}
}

// GuaranteesWebhook: completion arrives through payment_intent.* events.
func (p *Stripe) GuaranteesWebhook() bool { return true }

func (p *Stripe) credentials() map[string]string {
	return map[string]string{"secret_key": p.cfg.APISecret, "publishable_key": p.cfg.PublishableKey}
}

// ApplicationFee is the platform share of amount in minor units.
func (p *Stripe) ApplicationFee(amount int64) int64 {
	return decimal.NewFromInt(amount).Mul(p.feePercent).Div(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (p *Stripe) InitiatePayment(ctx context.Context, req adapter.InitiateRequest) model.ProviderResult {
	if res, bad := p.missing(p.credentials()); bad {
		return res
	}
	if res, bad := validateAmount(req.Amount); bad {
		return res
	}
	currency := currencyOr(req.Currency, "XOF")
	amount := minorUnits(req.Amount, currency)

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(amount),
		Currency:    stripe.String(strings.ToLower(currency)),
		Description: stripe.String(describe(req.Description, req.TransactionID)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.TransactionID)
	params.AddMetadata(MetaTransactionID, req.TransactionID)
	for k, v := range req.Metadata {
		if k == MetaStripeAccount {
			continue
		}
		params.AddMetadata(k, v)
	}
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}
	if acct := req.Metadata[MetaStripeAccount]; acct != "" {
		params.TransferData = &stripe.PaymentIntentTransferDataParams{Destination: stripe.String(acct)}
		params.ApplicationFeeAmount = stripe.Int64(p.ApplicationFee(amount))
	}

	start := time.Now()
	pi, err := p.api.PaymentIntents.New(params)
	metrics.ObserveProviderCall(string(p.method), "initiate", callResult(err), time.Since(start))
	if err != nil {
		return stripeFailed(err)
	}
	return model.ProviderResult{
		Success:    true,
		Status:     MapStatus(string(pi.Status)),
		ExternalID: pi.ID,
		ProviderResponse: map[string]any{
			"id":               pi.ID,
			"status":           string(pi.Status),
			"amount":           pi.Amount,
			"currency":         string(pi.Currency),
			MetaClientSecret:   pi.ClientSecret,
			MetaPublishableKey: p.cfg.PublishableKey,
		},
	}
}

// VerifyPayment reads the intent by id, or searches it by transaction id.
func (p *Stripe) VerifyPayment(ctx context.Context, req adapter.VerifyRequest) model.ProviderResult {
	if res, bad := p.missing(p.credentials()); bad {
		return res
	}
	start := time.Now()
	pi, err := p.lookup(ctx, req)
	metrics.ObserveProviderCall(string(p.method), "verify", callResult(err), time.Since(start))
	if err != nil {
		return stripeFailed(err)
	}
	return model.ProviderResult{
		Success:    true,
		Status:     intentStatus(pi.Status),
		ExternalID: pi.ID,
		ProviderResponse: map[string]any{
			"id":     pi.ID,
			"status": string(pi.Status),
			"amount": pi.Amount,
		},
	}
}

func (p *Stripe) lookup(ctx context.Context, req adapter.VerifyRequest) (*stripe.PaymentIntent, error) {
	if req.ExternalID != "" {
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx
		return p.api.PaymentIntents.Get(req.ExternalID, params)
	}
	params := &stripe.PaymentIntentSearchParams{}
	params.Context = ctx
	params.Query = fmt.Sprintf("metadata['%s']:'%s'", MetaTransactionID, strings.ReplaceAll(req.TransactionID, "'", ""))
	iter := p.api.PaymentIntents.Search(params)
	if iter.Next() {
		return iter.PaymentIntent(), nil
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return nil, errors.New("no PaymentIntent for transaction " + req.TransactionID)
}

// intentStatus keeps requires_* states pending; only canceled is a failure.
func intentStatus(s stripe.PaymentIntentStatus) model.ProviderStatus {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return model.ProviderStatusCompleted
	case stripe.PaymentIntentStatusCanceled:
		return model.ProviderStatusFailed
	default:
		return model.ProviderStatusPending
	}
}

func stripeFailed(err error) model.ProviderResult {
	if isTimeout(err) {
		return model.Failure("timeout", nil)
	}
	var se *stripe.Error
	if errors.As(err, &se) {
		return model.Failure(fmt.Sprintf("stripe %s: %s", se.Code, se.Msg), map[string]any{
			"http_status": se.HTTPStatusCode,
			"type":        string(se.Type),
			"code":        string(se.Code),
		})
	}
	return model.Failure(err.Error(), nil)
}
