package provider

import (
	"context"
	"net/http"

	"mymedaga-payments/internal/config"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/adapter"
	"mymedaga-payments/internal/infra/security"
)

var _ adapter.Provider = (*CinetPay)(nil)

// CinetPay hosted checkout. APIKey is the apikey and SiteID the site_id.
type CinetPay struct{ base }

func NewCinetPay(cfg config.ProviderConfig, opts Options) *CinetPay {
	return &CinetPay{newBase(model.MethodCinetPay, cfg, opts,
		"https://api-checkout.cinetpay.com",
		"https://api-checkout.cinetpay.com")}
}

func (p *CinetPay) credentials() map[string]string {
	return map[string]string{"api_key": p.cfg.APIKey, "site_id": p.cfg.SiteID}
}

func (p *CinetPay) InitiatePayment(ctx context.Context, req adapter.InitiateRequest) model.ProviderResult {
	if res, bad := p.missing(p.credentials()); bad {
		return res
	}
	if res, bad := validateAmount(req.Amount); bad {
		return res
	}
	currency := currencyOr(req.Currency, "XOF")
	body := map[string]any{
		"apikey":         p.cfg.APIKey,
		"site_id":        p.cfg.SiteID,
		"transaction_id": req.TransactionID,
		"amount":         minorUnits(req.Amount, currency),
		"currency":       currency,
		"description":    describe(req.Description, req.TransactionID),
		"return_url":     p.cfg.ReturnURL,
		"notify_url":     p.cfg.NotifyURL,
		"channels":       "ALL",
	}
	if req.Phone != "" {
		if phone, err := NormalizePhone(req.Phone, ""); err == nil {
			body["customer_phone_number"] = phone
		}
	}
	if p.cfg.APISecret != "" {
		sig, err := security.Sign(p.cfg.APISecret, body)
		if err != nil {
			return model.Failure(err.Error(), nil)
		}
		body[security.SignatureField] = sig
	}
	resp, err := p.do(ctx, request{op: "initiate", method: http.MethodPost, path: "/v2/payment", body: body})
	if err != nil {
		return failed(err)
	}
	if code := str(resp, "code"); code != "" && code != "201" {
		return model.Failure("CinetPay error "+code+": "+str(resp, "message"), resp)
	}
	return pending(str(resp, "data.payment_token"), str(resp, "data.payment_url"), resp)
}

func (p *CinetPay) VerifyPayment(ctx context.Context, req adapter.VerifyRequest) model.ProviderResult {
	if res, bad := p.missing(p.credentials()); bad {
		return res
	}
	body := map[string]any{
		"apikey":         p.cfg.APIKey,
		"site_id":        p.cfg.SiteID,
		"transaction_id": req.TransactionID,
	}
	resp, err := p.do(ctx, request{op: "verify", method: http.MethodPost, path: "/v2/payment/check", body: body})
	if err != nil {
		return failed(err)
	}
	return verified(str(resp, "data.status"), str(resp, "data.operator_id"), resp)
}
