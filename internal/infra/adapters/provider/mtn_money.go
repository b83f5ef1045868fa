package provider

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"mymedaga-payments/internal/config"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/adapter"
)

var _ adapter.Provider = (*MTNMoney)(nil)

// referenceSpace namespaces the X-Reference-Id derived from a transaction id.
var referenceSpace = uuid.MustParse("5c1f6a52-8a2e-4c34-9d0e-6d1b7a2f4e11")

// MTNMoney implements the MoMo collection API. A fresh access token is
// exchanged with Basic auth before each call.
type MTNMoney struct{ base }

func NewMTNMoney(cfg config.ProviderConfig, opts Options) *MTNMoney {
	return &MTNMoney{newBase(model.MethodMTN, cfg, opts,
		"https://sandbox.momodeveloper.mtn.com",
		"https://api.momodeveloper.mtn.com")}
}

// ReferenceID is the UUID MoMo requires as X-Reference-Id. It is derived from
// the transaction id so verification can recompute it.
func ReferenceID(transactionID string) string {
	return uuid.NewSHA1(referenceSpace, []byte(transactionID)).String()
}

func (p *MTNMoney) targetEnvironment() string {
	if p.cfg.TargetEnvironment != "" {
		return p.cfg.TargetEnvironment
	}
	if p.prod {
		return "production"
	}
	return "sandbox"
}

func (p *MTNMoney) headers(token string) map[string]string {
	h := map[string]string{
		"Authorization":        "Bearer " + token,
		"X-Target-Environment": p.targetEnvironment(),
	}
	if p.cfg.Token != "" {
		h["Ocp-Apim-Subscription-Key"] = p.cfg.Token
	}
	return h
}

func (p *MTNMoney) accessToken(ctx context.Context) (string, error) {
	h := map[string]string{}
	if p.cfg.Token != "" {
		h["Ocp-Apim-Subscription-Key"] = p.cfg.Token
	}
	resp, err := p.do(ctx, request{
		op:      "token",
		method:  http.MethodPost,
		path:    "/collection/token/",
		headers: h,
		auth:    &basicAuth{user: p.cfg.APIKey, pass: p.cfg.APISecret},
	})
	if err != nil {
		return "", err
	}
	return str(resp, "access_token"), nil
}

func (p *MTNMoney) InitiatePayment(ctx context.Context, req adapter.InitiateRequest) model.ProviderResult {
	if res, bad := p.missing(map[string]string{"api_key": p.cfg.APIKey, "api_secret": p.cfg.APISecret}); bad {
		return res
	}
	if res, bad := validateAmount(req.Amount); bad {
		return res
	}
	phone, err := NormalizePhone(req.Phone, CountryCM)
	if err != nil {
		return model.Failure(err.Error(), nil)
	}
	token, err := p.accessToken(ctx)
	if err != nil {
		return failed(err)
	}
	if token == "" {
		return model.Failure("MTN token exchange returned no access token", nil)
	}

	ref := ReferenceID(req.TransactionID)
	headers := p.headers(token)
	headers["X-Reference-Id"] = ref
	if p.cfg.NotifyURL != "" {
		headers["X-Callback-Url"] = p.cfg.NotifyURL
	}
	body := map[string]any{
		"amount":     req.Amount.StringFixed(0),
		"currency":   currencyOr(req.Currency, "XAF"),
		"externalId": req.TransactionID,
		"payer": map[string]any{
			"partyIdType": "MSISDN",
			"partyId":     phone,
		},
		"payerMessage": describe(req.Description, req.TransactionID),
		"payeeNote":    "Commande " + req.TransactionID,
	}
	if _, err := p.do(ctx, request{op: "initiate", method: http.MethodPost, path: "/collection/v1_0/requesttopay", headers: headers, body: body}); err != nil {
		return failed(err)
	}
	// 202 Accepted with an empty body; the payer confirms on the handset.
	return pending(ref, "", map[string]any{"status": "PENDING", "reference_id": ref})
}

func (p *MTNMoney) VerifyPayment(ctx context.Context, req adapter.VerifyRequest) model.ProviderResult {
	if res, bad := p.missing(map[string]string{"api_key": p.cfg.APIKey, "api_secret": p.cfg.APISecret}); bad {
		return res
	}
	token, err := p.accessToken(ctx)
	if err != nil {
		return failed(err)
	}
	ref := req.ExternalID
	if ref == "" {
		ref = ReferenceID(req.TransactionID)
	}
	resp, err := p.do(ctx, request{
		op:      "verify",
		method:  http.MethodGet,
		path:    "/collection/v1_0/requesttopay/" + ref,
		headers: p.headers(token),
	})
	if err != nil {
		return failed(err)
	}
	return verified(str(resp, "status"), ref, resp)
}
