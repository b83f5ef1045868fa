package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"mymedaga-payments/internal/domain"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/adapter"
	"mymedaga-payments/internal/domain/ports/repository"
	"mymedaga-payments/internal/infra/adapters/provider"
	"mymedaga-payments/internal/infra/logging"
	"mymedaga-payments/internal/infra/metrics"
	"mymedaga-payments/internal/infra/redis"
	"mymedaga-payments/internal/infra/security"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileUseCase settles payments from asynchronous confirmations:
// provider webhooks, Stripe events, forwarded SMS receipts and polling.
type ReconcileUseCase interface {
	HandleWebhook(ctx context.Context, providerName string, in WebhookInput) (*WebhookResult, error)
	HandleStripeEvent(ctx context.Context, payload []byte, signatureHeader string) (*WebhookResult, error)
	HandleSMS(ctx context.Context, in WebhookInput) (*WebhookResult, error)
	Poll(ctx context.Context, paymentID string) (*model.Payment, error)
}

type WebhookOutcome string

const (
	OutcomeProcessed WebhookOutcome = "processed"
	OutcomeIgnored   WebhookOutcome = "ignored"
	OutcomeDuplicate WebhookOutcome = "duplicate"
	OutcomeUnmatched WebhookOutcome = "unmatched"
)

// WebhookInput is a decoded callback body plus the signature found in headers.
type WebhookInput struct {
	Payload   map[string]any
	Signature string
	RemoteIP  string
}

type WebhookResult struct {
	Outcome   WebhookOutcome
	PaymentID string
	Status    model.PaymentStatus
	Reason    string
}

// ReconcileConfig carries the webhook secrets. An empty secret is accepted
// unsigned in sandbox and rejected in production.
type ReconcileConfig struct {
	Production          bool
	WebhookSecrets      map[model.PaymentMethod]string
	StripeWebhookSecret string
	SMSSecret           string
	VerifyLockTTL       time.Duration
}

type reconcileUC struct {
	cfg      ReconcileConfig
	payments repository.PaymentRepository
	registry ProviderRegistry
	settler  *Settler
	locker   redis.Locker
	alerter  adapter.Alerter
	log      *zerolog.Logger
}

func NewReconcileUseCase(
	cfg ReconcileConfig,
	payments repository.PaymentRepository,
	registry ProviderRegistry,
	settler *Settler,
	locker redis.Locker,
	alerter adapter.Alerter,
	logger *zerolog.Logger,
) *reconcileUC {
	if cfg.VerifyLockTTL <= 0 {
		cfg.VerifyLockTTL = time.Minute
	}
	l := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{
		cfg:      cfg,
		payments: payments,
		registry: registry,
		settler:  settler,
		locker:   locker,
		alerter:  alerter,
		log:      &l,
	}
}

var (
	webhookCompleted = map[string]bool{"SUCCESS": true, "SUCCESSFUL": true, "COMPLETED": true, "PAID": true}
	webhookFailed    = map[string]bool{"FAILED": true, "CANCELLED": true, "REJECTED": true}
)

// HandleWebhook runs the generic provider callback pipeline: identify the
// payment, check the provider and signature, then settle on a known status.
func (u *reconcileUC) HandleWebhook(ctx context.Context, providerName string, in WebhookInput) (res *WebhookResult, err error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.HandleWebhook")()
	start := time.Now()
	defer func() { metrics.IncWebhook(providerName, webhookMetricResult(res, err), time.Since(start).Seconds()) }()

	method, ok := model.ParseMethod(providerName)
	if !ok {
		return nil, fmt.Errorf("%w: %w %q", domain.ErrValidation, domain.ErrUnknownMethod, providerName)
	}
	txID := webhookTransactionID(in.Payload)
	if txID == "" {
		return nil, fmt.Errorf("%w: missing transaction_id", domain.ErrValidation)
	}
	p, err := u.payments.FindByTransactionID(ctx, nil, txID)
	if err != nil {
		return nil, err
	}
	log := logging.With(logging.WithPaymentID(ctx, p.ID), u.log)
	if p.Method != method {
		u.securityEvent(ctx, string(method), txID, in.RemoteIP, "method mismatch")
		return nil, fmt.Errorf("%w: %w: %s webhook for a %s payment", domain.ErrSignature, domain.ErrMethodMismatch, method, p.Method)
	}
	if err := u.checkSignature(ctx, string(method), u.cfg.WebhookSecrets[method], txID, in); err != nil {
		return nil, err
	}

	status := strings.ToUpper(firstString(in.Payload, "status", "data.status"))
	var target model.PaymentStatus
	switch {
	case webhookCompleted[status]:
		target = model.PaymentStatusCompleted
	case webhookFailed[status]:
		target = model.PaymentStatusFailed
	default:
		log.Info().Str("status", status).Msg("webhook status ignored")
		return &WebhookResult{Outcome: OutcomeIgnored, PaymentID: p.ID, Status: p.Status, Reason: "status " + status}, nil
	}
	return u.settle(ctx, p.ID, target, map[string]any{"webhook": in.Payload})
}

// HandleStripeEvent verifies the Stripe-Signature header and settles
// payment_intent.succeeded and payment_intent.payment_failed events.
func (u *reconcileUC) HandleStripeEvent(ctx context.Context, payload []byte, signatureHeader string) (res *WebhookResult, err error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.HandleStripeEvent")()
	start := time.Now()
	defer func() {
		metrics.IncWebhook(string(model.MethodStripe), webhookMetricResult(res, err), time.Since(start).Seconds())
	}()

	var event stripe.Event
	switch {
	case u.cfg.StripeWebhookSecret != "":
		event, err = webhook.ConstructEventWithOptions(payload, signatureHeader, u.cfg.StripeWebhookSecret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			metrics.IncSignatureFailure(string(model.MethodStripe))
			u.log.Warn().Err(err).Msg("SECURITY: invalid stripe event")
			return nil, fmt.Errorf("%w: stripe event: %v", domain.ErrValidation, err)
		}
	case u.cfg.Production:
		return nil, fmt.Errorf("%w: stripe webhook secret is not configured", domain.ErrValidation)
	default:
		u.log.Warn().Msg("stripe webhook secret not configured, accepting unsigned event (sandbox)")
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("%w: stripe event: %v", domain.ErrValidation, err)
		}
	}

	var target model.PaymentStatus
	switch event.Type {
	case "payment_intent.succeeded":
		target = model.PaymentStatusCompleted
	case "payment_intent.payment_failed":
		target = model.PaymentStatusFailed
	default:
		return &WebhookResult{Outcome: OutcomeIgnored, Reason: "event " + string(event.Type)}, nil
	}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: stripe event without data", domain.ErrValidation)
	}
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, fmt.Errorf("%w: stripe payment intent: %v", domain.ErrValidation, err)
	}
	p, err := u.findStripePayment(ctx, &intent)
	if errors.Is(err, domain.ErrNotFound) {
		u.log.Warn().Str("intent", intent.ID).Msg("stripe event for unknown payment")
		return &WebhookResult{Outcome: OutcomeUnmatched, Reason: "unknown payment intent"}, nil
	}
	if err != nil {
		return nil, err
	}
	meta := map[string]any{"webhook": map[string]any{
		"event_id": event.ID,
		"type":     string(event.Type),
		"intent":   intent.ID,
		"status":   string(intent.Status),
		"amount":   intent.AmountReceived,
	}}
	if intent.LastPaymentError != nil {
		meta["error"] = intent.LastPaymentError.Msg
	}
	return u.settle(ctx, p.ID, target, meta)
}

func (u *reconcileUC) findStripePayment(ctx context.Context, intent *stripe.PaymentIntent) (*model.Payment, error) {
	if id := intent.Metadata[provider.MetaPaymentID]; id != "" {
		return u.payments.FindByID(ctx, nil, id)
	}
	if tx := intent.Metadata[provider.MetaTransactionID]; tx != "" {
		return u.payments.FindByTransactionID(ctx, nil, tx)
	}
	return nil, domain.ErrNotFound
}

// smsPattern matches receipts such as
// "Vous avez reçu 5000 FCFA de +22507000000. Ref: OM12345678".
var smsPattern = regexp.MustCompile(`(?is)Vous avez re(?:ç|c)u\s+([\d\s.,]+?)\s*FCFA\s+de\s+(\+?\d+).*?Ref\s*:\s*([A-Z0-9]+)`)

var smsPrefixes = []struct {
	prefix string
	method model.PaymentMethod
}{
	{"OM", model.MethodOrangeMoney},
	{"MTN", model.MethodMTN},
	{"MOOV", model.MethodMoovMoney},
	{"WV", model.MethodWave},
}

// SMSReceipt is what a forwarded mobile money SMS tells us.
type SMSReceipt struct {
	Amount    decimal.Decimal
	Phone     string
	Reference string
	Method    model.PaymentMethod // empty when the prefix is unknown
}

// ParseSMS extracts the receipt from a forwarded SMS body.
func ParseSMS(message string) (*SMSReceipt, error) {
	m := smsPattern.FindStringSubmatch(message)
	if m == nil {
		return nil, fmt.Errorf("%w: unrecognized SMS format", domain.ErrValidation)
	}
	raw := strings.NewReplacer(" ", "", "\u00a0", "", ",", ".").Replace(strings.TrimSpace(m[1]))
	amount, err := decimal.NewFromString(strings.TrimSuffix(raw, "."))
	if err != nil {
		return nil, fmt.Errorf("%w: SMS amount %q", domain.ErrValidation, m[1])
	}
	r := &SMSReceipt{Amount: amount, Phone: m[2], Reference: strings.ToUpper(m[3])}
	for _, p := range smsPrefixes {
		if strings.HasPrefix(r.Reference, p.prefix) {
			r.Method = p.method
			break
		}
	}
	return r, nil
}

// HandleSMS completes the open payment a forwarded SMS receipt refers to.
func (u *reconcileUC) HandleSMS(ctx context.Context, in WebhookInput) (res *WebhookResult, err error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.HandleSMS")()
	start := time.Now()
	defer func() { metrics.IncWebhook("sms", webhookMetricResult(res, err), time.Since(start).Seconds()) }()

	message := firstString(in.Payload, "message", "body", "text")
	if message == "" {
		return nil, fmt.Errorf("%w: missing message", domain.ErrValidation)
	}
	receipt, err := ParseSMS(message)
	if err != nil {
		return nil, err
	}
	if err := u.checkSignature(ctx, "sms", u.cfg.SMSSecret, receipt.Reference, in); err != nil {
		return nil, err
	}

	p, err := u.payments.FindByReference(ctx, nil, receipt.Reference)
	if errors.Is(err, domain.ErrNotFound) {
		p, err = u.payments.FindByTransactionID(ctx, nil, receipt.Reference)
	}
	if errors.Is(err, domain.ErrNotFound) {
		u.log.Info().Str("reference", receipt.Reference).Msg("SMS receipt matches no payment")
		return &WebhookResult{Outcome: OutcomeUnmatched, Reason: "no payment for reference"}, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Status.IsTerminal() {
		return &WebhookResult{Outcome: OutcomeDuplicate, PaymentID: p.ID, Status: p.Status}, nil
	}
	if !p.Amount.Equal(receipt.Amount) {
		u.log.Warn().Str("payment_id", p.ID).Str("expected", p.Amount.String()).Str("received", receipt.Amount.String()).Msg("SMS amount mismatch")
		return &WebhookResult{Outcome: OutcomeIgnored, PaymentID: p.ID, Status: p.Status, Reason: "amount mismatch"}, nil
	}
	if receipt.Method != "" && p.Method.IsMobileMoney() && receipt.Method != p.Method {
		return &WebhookResult{Outcome: OutcomeIgnored, PaymentID: p.ID, Status: p.Status, Reason: "method mismatch"}, nil
	}
	return u.settle(ctx, p.ID, model.PaymentStatusCompleted, map[string]any{"sms": map[string]any{
		"reference": receipt.Reference,
		"amount":    receipt.Amount.String(),
		"phone":     receipt.Phone,
		"sender":    firstString(in.Payload, "sender", "from"),
	}})
}

// Poll asks the provider once for the payment's state. A provider failure
// leaves the payment untouched for the next attempt.
func (u *reconcileUC) Poll(ctx context.Context, paymentID string) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.Poll")()
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status.IsTerminal() {
		return p, nil
	}
	log := logging.With(logging.WithPaymentID(ctx, p.ID), u.log)

	if u.locker != nil {
		key := redis.VerifyLockKey(p.ID)
		token, err := u.locker.TryLock(ctx, key, u.cfg.VerifyLockTTL)
		if errors.Is(err, domain.ErrConcurrency) {
			log.Debug().Msg("verification already running elsewhere")
			return p, nil
		}
		if err != nil {
			// The settlement CAS still guards against double transitions.
			log.Warn().Err(err).Msg("verify lock unavailable, polling without it")
		} else {
			defer func() {
				if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
					log.Warn().Err(err).Msg("verify unlock failed")
				}
			}()
		}
	}

	prov, err := u.registry.Resolve(string(p.Method))
	if err != nil {
		return nil, err
	}
	res := prov.VerifyPayment(ctx, adapter.VerifyRequest{TransactionID: p.TransactionID, ExternalID: p.ExternalID})
	if !res.Success {
		log.Warn().Str("error", res.Error).Msg("provider verification failed")
		return p, nil
	}
	var target model.PaymentStatus
	switch res.Status {
	case model.ProviderStatusCompleted:
		target = model.PaymentStatusCompleted
	case model.ProviderStatusFailed:
		target = model.PaymentStatusFailed
	default:
		return p, nil
	}
	out, _, err := u.settler.Transition(ctx, p.ID, target, map[string]any{"verification": persistable(res.ProviderResponse)})
	return out, err
}

func (u *reconcileUC) settle(ctx context.Context, paymentID string, status model.PaymentStatus, meta map[string]any) (*WebhookResult, error) {
	p, applied, err := u.settler.Transition(ctx, paymentID, status, meta)
	if err != nil {
		return nil, err
	}
	if !applied {
		return &WebhookResult{Outcome: OutcomeDuplicate, PaymentID: p.ID, Status: p.Status}, nil
	}
	return &WebhookResult{Outcome: OutcomeProcessed, PaymentID: p.ID, Status: p.Status}, nil
}

// checkSignature verifies the HMAC of the canonical payload. Without a
// secret, unsigned callbacks pass in sandbox only.
func (u *reconcileUC) checkSignature(ctx context.Context, source, secret, ref string, in WebhookInput) error {
	if secret == "" {
		if u.cfg.Production {
			u.securityEvent(ctx, source, ref, in.RemoteIP, "secret not configured")
			return fmt.Errorf("%w: no webhook secret configured for %s", domain.ErrSignature, source)
		}
		u.log.Warn().Str("source", source).Msg("webhook secret not configured, accepting unsigned callback (sandbox)")
		return nil
	}
	sig := in.Signature
	if sig == "" {
		sig, _ = in.Payload[security.SignatureField].(string)
	}
	if sig == "" {
		u.securityEvent(ctx, source, ref, in.RemoteIP, "missing")
		return fmt.Errorf("%w: %w", domain.ErrSignature, domain.ErrMissingSignature)
	}
	if !security.Verify(secret, in.Payload, sig) {
		u.securityEvent(ctx, source, ref, in.RemoteIP, "invalid")
		return domain.ErrSignature
	}
	return nil
}

func (u *reconcileUC) securityEvent(ctx context.Context, source, ref, ip, reason string) {
	metrics.IncSignatureFailure(source)
	u.log.Error().Str("source", source).Str("transaction_id", ref).Str("remote_ip", ip).Str("reason", reason).Msg("SECURITY: webhook rejected")
	if u.alerter == nil {
		return
	}
	text := u.settler.tr.T("alert_signature_failure", source, ref, ip)
	if err := u.alerter.Alert(ctx, text); err != nil {
		u.log.Warn().Err(err).Msg("admin alert failed")
	}
}

func webhookMetricResult(res *WebhookResult, err error) string {
	switch {
	case errors.Is(err, domain.ErrSignature):
		return "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrValidation):
		return "bad_request"
	case err != nil:
		return "error"
	case res == nil:
		return "error"
	}
	return string(res.Outcome)
}

// webhookTransactionID finds the payment identifier in the usual places.
func webhookTransactionID(payload map[string]any) string {
	return firstString(payload, "transaction_id", "order_id", "reference", "data.transaction_id", "data.order_id", "data.reference")
}

func firstString(payload map[string]any, paths ...string) string {
	for _, path := range paths {
		var cur any = payload
		for _, part := range strings.Split(path, ".") {
			obj, ok := cur.(map[string]any)
			if !ok {
				cur = nil
				break
			}
			cur = obj[part]
		}
		switch v := cur.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		case float64:
			return decimal.NewFromFloat(v).String()
		}
	}
	return ""
}

// ParseWebhookBody decodes a JSON object or a form body. JSON is assumed when
// the content type says so or the body starts with '{'.
func ParseWebhookBody(contentType string, body []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(body)
	if strings.Contains(strings.ToLower(contentType), "application/json") || bytes.HasPrefix(trimmed, []byte("{")) {
		out := map[string]any{}
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&out); err != nil {
			return nil, fmt.Errorf("%w: malformed JSON body: %v", domain.ErrValidation, err)
		}
		return out, nil
	}
	values, err := url.ParseQuery(string(trimmed))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed form body: %v", domain.ErrValidation, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: empty body", domain.ErrValidation)
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v[0]
	}
	return out, nil
}
