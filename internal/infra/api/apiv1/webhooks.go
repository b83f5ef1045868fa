package apiv1

import (
	"fmt"
	"io"
	"net/http"

	"mymedaga-payments/internal/domain"
	"mymedaga-payments/internal/usecase"
)

// outcomeHeader reports how a delivery was handled; the body stays "OK"
// because several providers retry on anything else.
const outcomeHeader = "X-Webhook-Outcome"

func (s *Server) acknowledge(w http.ResponseWriter, source string, res *usecase.WebhookResult) {
	s.log.Debug().
		Str("source", source).
		Str("outcome", string(res.Outcome)).
		Str("payment_id", res.PaymentID).
		Str("status", string(res.Status)).
		Str("reason", res.Reason).
		Msg("webhook acknowledged")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set(outcomeHeader, string(res.Outcome))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrValidation, err)
	}
	return body, nil
}

func webhookSignature(r *http.Request) string {
	for _, h := range []string{"X-Signature", "Signature", "X-Webhook-Signature"} {
		if v := r.Header.Get(h); v != "" {
			return v
		}
	}
	return ""
}

func (s *Server) webhookInput(r *http.Request) (usecase.WebhookInput, error) {
	body, err := readBody(r)
	if err != nil {
		return usecase.WebhookInput{}, err
	}
	payload, err := usecase.ParseWebhookBody(r.Header.Get("Content-Type"), body)
	if err != nil {
		return usecase.WebhookInput{}, err
	}
	return usecase.WebhookInput{Payload: payload, Signature: webhookSignature(r), RemoteIP: clientIP(r)}, nil
}

func (s *Server) providerWebhook(w http.ResponseWriter, r *http.Request) {
	provider, err := pathString(r, "provider")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	in, err := s.webhookInput(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	res, err := s.reconcile.HandleWebhook(r.Context(), provider, in)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	s.acknowledge(w, provider, res)
}

func (s *Server) stripeEvents(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	res, err := s.reconcile.HandleStripeEvent(r.Context(), body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	s.acknowledge(w, "stripe", res)
}

func (s *Server) smsWebhook(w http.ResponseWriter, r *http.Request) {
	in, err := s.webhookInput(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	res, err := s.reconcile.HandleSMS(r.Context(), in)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	s.acknowledge(w, "sms", res)
}
