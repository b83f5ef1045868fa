package provider

import (
	"context"
	"fmt"
	"net/http"

	"mymedaga-payments/internal/config"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/adapter"
)

var _ adapter.Provider = (*FedaPay)(nil)

// MetaFedaPayMerchant routes a payment to the store's FedaPay merchant account.
const MetaFedaPayMerchant = "fedapay_merchant_id"

// FedaPay creates a transaction then asks for its payment token; both calls
// belong to one initiation. APISecret is the secret key.
type FedaPay struct{ base }

func NewFedaPay(cfg config.ProviderConfig, opts Options) *FedaPay {
	return &FedaPay{newBase(model.MethodFedaPay, cfg, opts,
		"https://sandbox-api.fedapay.com",
		"https://api.fedapay.com")}
}

func (p *FedaPay) auth() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.cfg.APISecret}
}

func (p *FedaPay) InitiatePayment(ctx context.Context, req adapter.InitiateRequest) model.ProviderResult {
	if res, bad := p.missing(map[string]string{"secret_key": p.cfg.APISecret}); bad {
		return res
	}
	if res, bad := validateAmount(req.Amount); bad {
		return res
	}
	currency := currencyOr(req.Currency, "XOF")
	customer := map[string]any{}
	if req.Email != "" {
		customer["email"] = req.Email
	}
	if req.Phone != "" {
		phone, err := NormalizePhone(req.Phone, CountryBJ)
		if err != nil {
			return model.Failure(err.Error(), nil)
		}
		customer["phone_number"] = map[string]any{"number": "+" + phone, "country": "bj"}
	}
	meta := map[string]any{"transaction_id": req.TransactionID}
	if m := req.Metadata[MetaFedaPayMerchant]; m != "" {
		meta["merchant_id"] = m
	}
	body := map[string]any{
		"description":        describe(req.Description, req.TransactionID),
		"amount":             minorUnits(req.Amount, currency),
		"currency":           map[string]any{"iso": currency},
		"callback_url":       p.cfg.ReturnURL,
		"merchant_reference": req.TransactionID,
		"custom_metadata":    meta,
	}
	if len(customer) > 0 {
		body["customer"] = customer
	}
	created, err := p.do(ctx, request{op: "initiate", method: http.MethodPost, path: "/v1/transactions", headers: p.auth(), body: body})
	if err != nil {
		return failed(err)
	}
	id := str(created, "v1/transaction.id")
	if id == "" {
		return model.Failure("FedaPay response has no transaction id", created)
	}
	tok, err := p.do(ctx, request{op: "initiate", method: http.MethodPost, path: fmt.Sprintf("/v1/transactions/%s/token", id), headers: p.auth(), body: map[string]any{}})
	if err != nil {
		return failed(err)
	}
	created["token"] = tok
	return pending(id, str(tok, "url"), created)
}

func (p *FedaPay) VerifyPayment(ctx context.Context, req adapter.VerifyRequest) model.ProviderResult {
	if res, bad := p.missing(map[string]string{"secret_key": p.cfg.APISecret}); bad {
		return res
	}
	path := "/v1/transactions/merchant/" + req.TransactionID
	if req.ExternalID != "" {
		path = "/v1/transactions/" + req.ExternalID
	}
	resp, err := p.do(ctx, request{op: "verify", method: http.MethodGet, path: path, headers: p.auth()})
	if err != nil {
		return failed(err)
	}
	return verified(str(resp, "v1/transaction.status"), str(resp, "v1/transaction.id"), resp)
}
