package apiv1

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"mymedaga-payments/internal/domain"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/repository"
	"mymedaga-payments/internal/infra/logging"
	"mymedaga-payments/internal/usecase"
)

// CodeView is the listing shape of a verification code.
type CodeView struct {
	ID             int64            `json:"id"`
	Code           string           `json:"code"`
	Type           string           `json:"code_type"`
	Status         string           `json:"status"`
	UsageLimit     int              `json:"usage_limit"`
	UsageCount     int              `json:"usage_count"`
	MaxAttempts    int              `json:"max_attempts"`
	FailedAttempts int              `json:"failed_attempts"`
	ExpiresAt      time.Time        `json:"expires_at"`
	SubscriptionID *int64           `json:"subscription_id,omitempty"`
	ProductID      *int64           `json:"product_id,omitempty"`
	DiscountType   string           `json:"discount_type,omitempty"`
	DiscountValue  *decimal.Decimal `json:"discount_value,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

func toCodeView(c *model.VerificationCode) CodeView {
	v := CodeView{
		ID:             c.ID,
		Code:           c.Code,
		Type:           string(c.Type),
		Status:         string(c.Status),
		UsageLimit:     c.UsageLimit,
		UsageCount:     c.UsageCount,
		MaxAttempts:    c.MaxAttempts,
		FailedAttempts: c.FailedAttempts,
		ExpiresAt:      c.ExpiresAt,
		SubscriptionID: c.SubscriptionID,
		ProductID:      c.ProductID,
		DiscountType:   string(c.DiscountType),
		Notes:          c.Notes,
		CreatedAt:      c.CreatedAt,
	}
	if c.DiscountType != "" {
		d := c.DiscountValue
		v.DiscountValue = &d
	}
	return v
}

type verifyCodeRequest struct {
	Code    string `json:"code"`
	StoreID int64  `json:"store_id"`
}

type verifyCodeResponse struct {
	Success       bool             `json:"success"`
	Reason        string           `json:"reason,omitempty"`
	CodeType      string           `json:"code_type,omitempty"`
	DiscountType  string           `json:"discount_type,omitempty"`
	DiscountValue *decimal.Decimal `json:"discount_value,omitempty"`
}

func actorFrom(r *http.Request, claims *Claims) usecase.Actor {
	return usecase.Actor{UserID: claims.UserID(), IP: clientIP(r), UserAgent: r.UserAgent()}
}

// scopeStore resolves the store a request acts on. Owners are pinned to the
// store in their token; admins name it explicitly.
func scopeStore(claims *Claims, requested int64) (int64, error) {
	if claims.IsAdmin() {
		if requested <= 0 {
			return 0, fmt.Errorf("%w: store_id is required", domain.ErrValidation)
		}
		return requested, nil
	}
	if claims.StoreID <= 0 {
		return 0, fmt.Errorf("%w: token is not bound to a store", domain.ErrForbidden)
	}
	if requested > 0 && requested != claims.StoreID {
		return 0, fmt.Errorf("%w: store %d", domain.ErrForbidden, requested)
	}
	return claims.StoreID, nil
}

func (s *Server) verifyCode(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	var req verifyCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	storeID, err := scopeStore(claims, req.StoreID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	ctx := logging.WithStoreID(logging.WithUserID(r.Context(), claims.UserID()), storeID)

	res, err := s.codes.ValidateAndConsume(ctx, req.Code, storeID, actorFrom(r, claims))
	if err != nil {
		writeError(w, logging.With(ctx, s.log), err)
		return
	}
	resp := verifyCodeResponse{Success: res.Success, Reason: string(res.Reason)}
	if res.Code != nil {
		resp.CodeType = string(res.Code.Type)
	}
	if res.Success && res.DiscountType != "" {
		resp.DiscountType = string(res.DiscountType)
		d := res.DiscountValue
		resp.DiscountValue = &d
	}
	status := http.StatusOK
	if res.Reason == usecase.ReasonRateLimited {
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, resp)
}

func (s *Server) generateCodes(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	var in usecase.GenerateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, s.log, err)
		return
	}
	storeID, err := scopeStore(claims, in.StoreID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	in.StoreID = storeID
	in.CreatedBy = claims.UserID()
	ctx := logging.WithStoreID(logging.WithUserID(r.Context(), claims.UserID()), storeID)

	codes, err := s.codes.Generate(ctx, in)
	if err != nil {
		writeError(w, logging.With(ctx, s.log), err)
		return
	}
	items := make([]CodeView, 0, len(codes))
	for _, c := range codes {
		items = append(items, toCodeView(c))
	}
	writeJSON(w, http.StatusCreated, map[string]any{"items": items})
}

func (s *Server) listCodes(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	requested, err := queryInt64(r, "store_id", false)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	storeID, err := scopeStore(claims, requested)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	limit, err := queryInt64(r, "limit", false)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	q := r.URL.Query()
	f := repository.CodeFilter{
		Type:   model.CodeType(strings.ToLower(q.Get("type"))),
		Status: model.CodeStatus(strings.ToLower(q.Get("status"))),
		Limit:  int(limit),
	}
	codes, err := s.codes.ListByStore(r.Context(), storeID, f)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	items := make([]CodeView, 0, len(codes))
	for _, c := range codes {
		items = append(items, toCodeView(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) cancelCode(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, s.log, err)
			return
		}
	}
	if err := s.codes.Cancel(r.Context(), id, actorFrom(r, claims), body.Reason); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": model.CodeStatusCancelled})
}

func (s *Server) deleteCode(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.codes.Delete(r.Context(), id, actorFrom(r, claims)); err != nil {
		writeError(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type codeStatsResponse struct {
	ByTypeStatus      map[model.CodeType]map[model.CodeStatus]int `json:"by_type_status"`
	UsedLast24h       int                                         `json:"used_last_24h"`
	Attempts24h       int                                         `json:"attempts_last_24h"`
	SuccessfulLast24h int                                         `json:"successful_last_24h"`
	SuccessRate       float64                                     `json:"success_rate"`
}

func (s *Server) codeStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.codes.Stats(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, codeStatsResponse{
		ByTypeStatus:      st.ByTypeStatus,
		UsedLast24h:       st.UsedLast24h,
		Attempts24h:       st.Attempts24h,
		SuccessfulLast24h: st.SuccessfulLast24h,
		SuccessRate:       st.SuccessRate(),
	})
}
