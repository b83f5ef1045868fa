package provider

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"mymedaga-payments/internal/config"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/adapter"
)

var _ adapter.Provider = (*Paystack)(nil)

// MetaPaystackSubaccount splits the charge to the store's Paystack subaccount.
const MetaPaystackSubaccount = "paystack_subaccount"

// Paystack initializes a transaction restricted to mobile money. APISecret is
// the secret key. Paystack always expects amounts in the currency subunit.
type Paystack struct{ base }

func NewPaystack(cfg config.ProviderConfig, opts Options) *Paystack {
	return &Paystack{newBase(model.MethodPaystack, cfg, opts,
		"https://api.paystack.co",
		"https://api.paystack.co")}
}

func (p *Paystack) auth() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.cfg.APISecret}
}

func (p *Paystack) InitiatePayment(ctx context.Context, req adapter.InitiateRequest) model.ProviderResult {
	if res, bad := p.missing(map[string]string{"secret_key": p.cfg.APISecret}); bad {
		return res
	}
	if res, bad := validateAmount(req.Amount); bad {
		return res
	}
	if strings.TrimSpace(req.Email) == "" {
		return model.Failure("ValidationError: Paystack requires a payer email", nil)
	}
	body := map[string]any{
		"email":        req.Email,
		"amount":       req.Amount.Shift(2).Round(0).IntPart(),
		"currency":     currencyOr(req.Currency, "XOF"),
		"reference":    req.TransactionID,
		"callback_url": p.cfg.ReturnURL,
		"channels":     []string{"mobile_money"},
		"metadata":     map[string]any{"transaction_id": req.TransactionID},
	}
	if sub := req.Metadata[MetaPaystackSubaccount]; sub != "" {
		body["subaccount"] = sub
	}
	resp, err := p.do(ctx, request{op: "initiate", method: http.MethodPost, path: "/transaction/initialize", headers: p.auth(), body: body})
	if err != nil {
		return failed(err)
	}
	if ok, _ := resp["status"].(bool); !ok {
		return model.Failure("Paystack: "+str(resp, "message"), resp)
	}
	return pending(str(resp, "data.access_code"), str(resp, "data.authorization_url"), resp)
}

func (p *Paystack) VerifyPayment(ctx context.Context, req adapter.VerifyRequest) model.ProviderResult {
	if res, bad := p.missing(map[string]string{"secret_key": p.cfg.APISecret}); bad {
		return res
	}
	resp, err := p.do(ctx, request{
		op:      "verify",
		method:  http.MethodGet,
		path:    "/transaction/verify/" + url.PathEscape(req.TransactionID),
		headers: p.auth(),
	})
	if err != nil {
		return failed(err)
	}
	return verified(str(resp, "data.status"), str(resp, "data.id"), resp)
}
