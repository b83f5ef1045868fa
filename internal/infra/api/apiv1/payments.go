package apiv1

import (
	"net/http"
	"time"

	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/infra/logging"
	"mymedaga-payments/internal/usecase"
)

type initiateResponse struct {
	Success       bool   `json:"success"`
	PaymentID     string `json:"payment_id,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	PaymentURL    string `json:"payment_url,omitempty"`
	Status        string `json:"status,omitempty"`
	Error         string `json:"error,omitempty"`
}

// PaymentView is the public shape of a payment. Payer details are never returned.
type PaymentView struct {
	ID            string     `json:"id"`
	TransactionID string     `json:"transaction_id"`
	Status        string     `json:"status"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	Method        string     `json:"payment_method"`
	TargetType    string     `json:"target_type"`
	TargetID      int64      `json:"target_id"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toPaymentView(p *model.Payment) PaymentView {
	return PaymentView{
		ID:            p.ID,
		TransactionID: p.TransactionID,
		Status:        string(p.Status),
		Amount:        p.Amount.StringFixed(2),
		Currency:      p.Currency,
		Method:        string(p.Method),
		TargetType:    string(p.Target.Type),
		TargetID:      p.Target.ID,
		PaidAt:        p.PaidAt,
		CreatedAt:     p.CreatedAt,
	}
}

func (s *Server) initiatePayment(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	ctx := logging.WithUserID(r.Context(), claims.UserID())
	log := logging.With(ctx, s.log)

	var in usecase.InitiateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, log, err)
		return
	}
	in.UserID = claims.UserID()

	out, err := s.payments.Initiate(ctx, in)
	if err != nil {
		writeError(w, log, err)
		return
	}
	resp := initiateResponse{
		Success:       out.Success,
		PaymentID:     out.PaymentID,
		TransactionID: out.TransactionID,
		PaymentURL:    out.PaymentURL,
		Status:        string(out.Status),
		Error:         out.Error,
	}
	status := http.StatusCreated
	if !out.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

func (s *Server) stripeIntent(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	ctx := logging.WithUserID(r.Context(), claims.UserID())
	log := logging.With(ctx, s.log)

	var in usecase.StripeIntentInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, log, err)
		return
	}
	in.UserID = claims.UserID()

	out, err := s.payments.StripeIntent(ctx, in)
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"payment_id":      out.PaymentID,
		"transaction_id":  out.TransactionID,
		"client_secret":   out.ClientSecret,
		"publishable_key": out.PublishableKey,
	})
}

func (s *Server) getPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathString(r, "id")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	ctx := logging.WithPaymentID(r.Context(), id)
	p, err := s.payments.Get(ctx, id)
	if err != nil {
		writeError(w, logging.With(ctx, s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentView(p))
}

// verifyPayment asks the provider now instead of waiting for the reconciler.
func (s *Server) verifyPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathString(r, "id")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	ctx := logging.WithPaymentID(r.Context(), id)
	p, err := s.reconcile.Poll(ctx, id)
	if err != nil {
		writeError(w, logging.With(ctx, s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentView(p))
}

func (s *Server) listMethods(w http.ResponseWriter, r *http.Request) {
	storeID, err := queryInt64(r, "store_id", false)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	methods, err := s.payments.ListMethods(r.Context(), storeID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": methods})
}
