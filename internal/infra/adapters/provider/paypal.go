package provider

import (
	"context"
	"net/http"
	"net/url"

	"mymedaga-payments/internal/config"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/adapter"
)

var _ adapter.Provider = (*PayPal)(nil)

// PayPal uses Checkout Orders v2 with an OAuth2 client-credentials token.
type PayPal struct{ base }

func NewPayPal(cfg config.ProviderConfig, opts Options) *PayPal {
	return &PayPal{newBase(model.MethodPayPal, cfg, opts,
		"https://api-m.sandbox.paypal.com",
		"https://api-m.paypal.com")}
}

func (p *PayPal) credentials() map[string]string {
	return map[string]string{"client_id": p.cfg.ClientID, "client_secret": p.cfg.ClientSecret}
}

func (p *PayPal) accessToken(ctx context.Context) (string, error) {
	resp, err := p.do(ctx, request{
		op:     "token",
		method: http.MethodPost,
		path:   "/v1/oauth2/token",
		body:   url.Values{"grant_type": {"client_credentials"}},
		auth:   &basicAuth{user: p.cfg.ClientID, pass: p.cfg.ClientSecret},
	})
	if err != nil {
		return "", err
	}
	return str(resp, "access_token"), nil
}

func (p *PayPal) InitiatePayment(ctx context.Context, req adapter.InitiateRequest) model.ProviderResult {
	if res, bad := p.missing(p.credentials()); bad {
		return res
	}
	if res, bad := validateAmount(req.Amount); bad {
		return res
	}
	token, err := p.accessToken(ctx)
	if err != nil {
		return failed(err)
	}
	if token == "" {
		return model.Failure("PayPal token exchange returned no access token", nil)
	}

	returnURL := p.cfg.ReturnURL
	if returnURL != "" {
		returnURL += "?transaction_id=" + url.QueryEscape(req.TransactionID)
	}
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []any{
			map[string]any{
				"reference_id": req.TransactionID,
				"custom_id":    req.TransactionID,
				"amount": map[string]any{
					"currency_code": currencyOr(req.Currency, "EUR"),
					"value":         req.Amount.StringFixed(2),
				},
				"description": describe(req.Description, req.TransactionID),
			},
		},
		"application_context": map[string]any{
			"return_url": returnURL,
			"cancel_url": p.cfg.CancelURL,
		},
	}
	resp, err := p.do(ctx, request{
		op:      "initiate",
		method:  http.MethodPost,
		path:    "/v2/checkout/orders",
		headers: map[string]string{"Authorization": "Bearer " + token, "PayPal-Request-Id": req.TransactionID},
		body:    body,
	})
	if err != nil {
		return failed(err)
	}
	approve := approvalLink(resp)
	if approve == "" {
		return model.Failure("PayPal response has no approval link", resp)
	}
	return pending(str(resp, "id"), approve, resp)
}

// VerifyPayment reads the order and captures it once the buyer approved it.
func (p *PayPal) VerifyPayment(ctx context.Context, req adapter.VerifyRequest) model.ProviderResult {
	if res, bad := p.missing(p.credentials()); bad {
		return res
	}
	if req.ExternalID == "" {
		return model.Failure("PayPal verification needs the order id", nil)
	}
	token, err := p.accessToken(ctx)
	if err != nil {
		return failed(err)
	}
	auth := map[string]string{"Authorization": "Bearer " + token}
	resp, err := p.do(ctx, request{op: "verify", method: http.MethodGet, path: "/v2/checkout/orders/" + url.PathEscape(req.ExternalID), headers: auth})
	if err != nil {
		return failed(err)
	}
	if str(resp, "status") == "APPROVED" {
		resp, err = p.do(ctx, request{
			op:      "capture",
			method:  http.MethodPost,
			path:    "/v2/checkout/orders/" + url.PathEscape(req.ExternalID) + "/capture",
			headers: auth,
			body:    map[string]any{},
		})
		if err != nil {
			return failed(err)
		}
	}
	return verified(str(resp, "status"), req.ExternalID, resp)
}

func approvalLink(resp map[string]any) string {
	links, _ := resp["links"].([]any)
	for _, l := range links {
		link, ok := l.(map[string]any)
		if !ok {
			continue
		}
		if link["rel"] == "approve" || link["rel"] == "payer-action" {
			href, _ := link["href"].(string)
			return href
		}
	}
	return ""
}
