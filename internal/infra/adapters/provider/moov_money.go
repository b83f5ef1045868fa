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

var _ adapter.Provider = (*MoovMoney)(nil)

// MoovMoney sends the HMAC signature in the X-Signature header.
type MoovMoney struct{ base }

func NewMoovMoney(cfg config.ProviderConfig, opts Options) *MoovMoney {
	return &MoovMoney{newBase(model.MethodMoovMoney, cfg, opts,
		"https://api-sandbox.moov-africa.com/v1",
		"https://api.moov-africa.com/v1")}
}

func (p *MoovMoney) InitiatePayment(ctx context.Context, req adapter.InitiateRequest) model.ProviderResult {
	if res, bad := p.missing(map[string]string{"api_key": p.cfg.APIKey}); bad {
		return res
	}
	if res, bad := validateAmount(req.Amount); bad {
		return res
	}
	phone, err := NormalizePhone(req.Phone, CountryBJ)
	if err != nil {
		return model.Failure(err.Error(), nil)
	}
	amount, _ := req.Amount.Float64()
	body := map[string]any{
		"merchantId":    p.cfg.MerchantID,
		"amount":        amount,
		"currency":      currencyOr(req.Currency, "XOF"),
		"orderId":       req.TransactionID,
		"customerPhone": phone,
		"description":   describe(req.Description, req.TransactionID),
		"callbackUrl":   p.cfg.NotifyURL,
	}
	headers := map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}
	if p.cfg.APISecret != "" {
		sig, err := security.Sign(p.cfg.APISecret, body)
		if err != nil {
			return model.Failure(err.Error(), nil)
		}
		headers["X-Signature"] = sig
	}
	resp, err := p.do(ctx, request{op: "initiate", method: http.MethodPost, path: "/payments/initiate", headers: headers, body: body})
	if err != nil {
		return failed(err)
	}
	return pending(str(resp, "transactionId"), str(resp, "paymentUrl"), resp)
}

func (p *MoovMoney) VerifyPayment(ctx context.Context, req adapter.VerifyRequest) model.ProviderResult {
	if res, bad := p.missing(map[string]string{"api_key": p.cfg.APIKey}); bad {
		return res
	}
	resp, err := p.do(ctx, request{
		op:      "verify",
		method:  http.MethodGet,
		path:    "/payments/" + url.PathEscape(req.TransactionID),
		headers: map[string]string{"Authorization": "Bearer " + p.cfg.APIKey},
	})
	if err != nil {
		return failed(err)
	}
	return verified(str(resp, "status"), str(resp, "transactionId"), resp)
}
