package provider

import (
	"context"
	"net/http"
	"net/url"

	"mymedaga-payments/internal/config"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/adapter"
)

var _ adapter.Provider = (*PayDunya)(nil)

const payDunyaOK = "00"

// PayDunya creates checkout invoices. Credentials travel in PAYDUNYA-* headers:
// APIKey is the master key, APISecret the private key and Token the API token.
type PayDunya struct{ base }

func NewPayDunya(cfg config.ProviderConfig, opts Options) *PayDunya {
	return &PayDunya{newBase(model.MethodPayDunya, cfg, opts,
		"https://app.paydunya.com/sandbox-api/v1",
		"https://app.paydunya.com/api/v1")}
}

func (p *PayDunya) headers() map[string]string {
	return map[string]string{
		"PAYDUNYA-MASTER-KEY":  p.cfg.APIKey,
		"PAYDUNYA-PRIVATE-KEY": p.cfg.APISecret,
		"PAYDUNYA-PUBLIC-KEY":  p.cfg.PublishableKey,
		"PAYDUNYA-TOKEN":       p.cfg.Token,
	}
}

func (p *PayDunya) InitiatePayment(ctx context.Context, req adapter.InitiateRequest) model.ProviderResult {
	if res, bad := p.missing(map[string]string{"master_key": p.cfg.APIKey}); bad {
		return res
	}
	if res, bad := validateAmount(req.Amount); bad {
		return res
	}
	body := map[string]any{
		"invoice": map[string]any{
			"total_amount": req.Amount.Round(0).IntPart(),
			"description":  describe(req.Description, req.TransactionID),
		},
		"store": map[string]any{"name": "MYMEDAGA"},
		"custom_data": map[string]any{
			"transaction_id": req.TransactionID,
		},
		"actions": map[string]any{
			"return_url":   p.cfg.ReturnURL,
			"cancel_url":   p.cfg.CancelURL,
			"callback_url": p.cfg.NotifyURL,
		},
	}
	resp, err := p.do(ctx, request{op: "initiate", method: http.MethodPost, path: "/checkout-invoice/create", headers: p.headers(), body: body})
	if err != nil {
		return failed(err)
	}
	if code := str(resp, "response_code"); code != payDunyaOK {
		msg := str(resp, "response_text")
		if msg == "" {
			msg = "PayDunya error " + code
		}
		return model.Failure(msg, resp)
	}
	// On success response_text carries the checkout URL.
	return pending(str(resp, "token"), str(resp, "response_text"), resp)
}

func (p *PayDunya) VerifyPayment(ctx context.Context, req adapter.VerifyRequest) model.ProviderResult {
	if res, bad := p.missing(map[string]string{"master_key": p.cfg.APIKey}); bad {
		return res
	}
	if req.ExternalID == "" {
		return model.Failure("PayDunya verification needs the invoice token", nil)
	}
	resp, err := p.do(ctx, request{
		op:      "verify",
		method:  http.MethodGet,
		path:    "/checkout-invoice/confirm/" + url.PathEscape(req.ExternalID),
		headers: p.headers(),
	})
	if err != nil {
		return failed(err)
	}
	if code := str(resp, "response_code"); code != payDunyaOK {
		return model.Failure(str(resp, "response_text"), resp)
	}
	return verified(str(resp, "status"), req.ExternalID, resp)
}
