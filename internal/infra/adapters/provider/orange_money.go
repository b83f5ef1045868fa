package provider

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"mymedaga-payments/internal/config"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/adapter"
	"mymedaga-payments/internal/infra/security"
)

var _ adapter.Provider = (*OrangeMoney)(nil)

// OrangeMoney talks to the Orange Money WebPay API. Requests are signed with
// HMAC-SHA256 over the canonical JSON body when a secret is configured.
type OrangeMoney struct{ base }

func NewOrangeMoney(cfg config.ProviderConfig, opts Options) *OrangeMoney {
	return &OrangeMoney{newBase(model.MethodOrangeMoney, cfg, opts,
		"https://api.orange.com/orange-money-webpay/dev/v1",
		"https://api.orange.com/orange-money-webpay")}
}

func (p *OrangeMoney) InitiatePayment(ctx context.Context, req adapter.InitiateRequest) model.ProviderResult {
	if res, bad := p.missing(map[string]string{"api_key": p.cfg.APIKey}); bad {
		return res
	}
	if res, bad := validateAmount(req.Amount); bad {
		return res
	}
	currency := currencyOr(req.Currency, "XOF")
	reference := req.Description
	if reference == "" {
		reference = req.TransactionID
	}
	body := map[string]any{
		"merchant_key": p.cfg.APIKey,
		"currency":     currency,
		"order_id":     req.TransactionID,
		"amount":       strconv.FormatInt(minorUnits(req.Amount, currency), 10),
		"return_url":   p.cfg.ReturnURL,
		"cancel_url":   p.cfg.CancelURL,
		"notif_url":    p.cfg.NotifyURL,
		"lang":         "fr",
		"reference":    truncate(reference, 50),
	}
	if req.Phone != "" {
		phone, err := NormalizePhone(req.Phone, CountryCI)
		if err != nil {
			return model.Failure(err.Error(), nil)
		}
		body["customer_msisdn"] = phone
	}
	if p.cfg.APISecret != "" {
		sig, err := security.Sign(p.cfg.APISecret, body)
		if err != nil {
			return model.Failure(err.Error(), nil)
		}
		body[security.SignatureField] = sig
	}
	resp, err := p.do(ctx, request{
		op:      "initiate",
		method:  http.MethodPost,
		path:    "/cashin",
		headers: map[string]string{"Authorization": "Bearer " + p.cfg.APIKey},
		body:    body,
	})
	if err != nil {
		return failed(err)
	}
	return pending(str(resp, "pay_token"), str(resp, "payment_url"), resp)
}

func (p *OrangeMoney) VerifyPayment(ctx context.Context, req adapter.VerifyRequest) model.ProviderResult {
	if res, bad := p.missing(map[string]string{"api_key": p.cfg.APIKey}); bad {
		return res
	}
	resp, err := p.do(ctx, request{
		op:      "verify",
		method:  http.MethodGet,
		path:    "/transaction/" + url.PathEscape(req.TransactionID),
		headers: map[string]string{"Authorization": "Bearer " + p.cfg.APIKey},
	})
	if err != nil {
		return failed(err)
	}
	return verified(str(resp, "status"), str(resp, "txnid"), resp)
}
