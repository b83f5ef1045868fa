package provider

import (
	"context"
	"net/http"
	"net/url"

	"mymedaga-payments/internal/config"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/adapter"
	"mymedaga-payments/internal/infra/security"
)

var _ adapter.Provider = (*Wave)(nil)

// Wave creates a hosted checkout; the payer is redirected to checkout_url.
type Wave struct{ base }

func NewWave(cfg config.ProviderConfig, opts Options) *Wave {
	return &Wave{newBase(model.MethodWave, cfg, opts,
		"https://api-sandbox.wave.com/v1",
		"https://api.wave.com/v1")}
}

func (p *Wave) InitiatePayment(ctx context.Context, req adapter.InitiateRequest) model.ProviderResult {
	if res, bad := p.missing(map[string]string{"api_key": p.cfg.APIKey}); bad {
		return res
	}
	if res, bad := validateAmount(req.Amount); bad {
		return res
	}
	amount, _ := req.Amount.Float64()
	body := map[string]any{
		"amount":       amount,
		"currency":     currencyOr(req.Currency, "XOF"),
		"reference":    req.TransactionID,
		"description":  describe(req.Description, req.TransactionID),
		"callback_url": p.cfg.NotifyURL,
	}
	if req.Phone != "" {
		phone, err := NormalizePhone(req.Phone, "")
		if err != nil {
			return model.Failure(err.Error(), nil)
		}
		body["restrict_payer_mobile"] = "+" + phone
	}
	headers := map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}
	if p.cfg.APISecret != "" {
		sig, err := security.Sign(p.cfg.APISecret, body)
		if err != nil {
			return model.Failure(err.Error(), nil)
		}
		headers["X-Signature"] = sig
	}
	resp, err := p.do(ctx, request{op: "initiate", method: http.MethodPost, path: "/checkout/initialize", headers: headers, body: body})
	if err != nil {
		return failed(err)
	}
	return pending(str(resp, "id"), str(resp, "checkout_url"), resp)
}

func (p *Wave) VerifyPayment(ctx context.Context, req adapter.VerifyRequest) model.ProviderResult {
	if res, bad := p.missing(map[string]string{"api_key": p.cfg.APIKey}); bad {
		return res
	}
	resp, err := p.do(ctx, request{
		op:      "verify",
		method:  http.MethodGet,
		path:    "/checkout/" + url.PathEscape(req.TransactionID),
		headers: map[string]string{"Authorization": "Bearer " + p.cfg.APIKey},
	})
	if err != nil {
		return failed(err)
	}
	status := str(resp, "status")
	if status == "" {
		status = str(resp, "payment_status")
	}
	return verified(status, str(resp, "id"), resp)
}
