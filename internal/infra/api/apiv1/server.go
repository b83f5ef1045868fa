package apiv1

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/rs/zerolog"

	"mymedaga-payments/internal/domain"
	"mymedaga-payments/internal/usecase"
)

const maxBodyBytes = 1 << 20

// Server holds the handlers of the v1 payments API.
type Server struct {
	payments  usecase.PaymentUseCase
	reconcile usecase.ReconcileUseCase
	codes     usecase.CodeUseCase
	auth      *Authenticator
	log       *zerolog.Logger
}

func NewServer(
	payments usecase.PaymentUseCase,
	reconcile usecase.ReconcileUseCase,
	codes usecase.CodeUseCase,
	auth *Authenticator,
	logger *zerolog.Logger,
) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "APIv1").Logger()
	return &Server{payments: payments, reconcile: reconcile, codes: codes, auth: auth, log: &l}
}

// RegisterAPIV1 mounts every route on r.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Route("/payment/webhook", func(r chi.Router) {
		r.Post("/stripe/events", s.stripeEvents)
		r.Post("/sms", s.smsWebhook)
		r.Post("/{provider}", s.providerWebhook)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/payments/methods", s.listMethods)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)

			r.Post("/payments", s.initiatePayment)
			r.Post("/payments/stripe/intent", s.stripeIntent)
			r.Get("/payments/{id}", s.getPayment)
			r.Post("/payments/{id}/verify", s.verifyPayment)

			r.Post("/codes/verify", s.verifyCode)
			r.Post("/codes", s.generateCodes)
			r.Get("/codes", s.listCodes)

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/codes/stats", s.codeStats)
				r.Post("/codes/{id}/cancel", s.cancelCode)
				r.Delete("/codes/{id}", s.deleteCode)
			})
		})
	})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrValidation)
	}
	return nil
}

func pathString(r *http.Request, name string) (string, error) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrValidation, name)
	}
	return v, nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	var v int64
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", domain.ErrValidation, name)
	}
	return v, nil
}

func queryInt64(r *http.Request, name string, required bool) (int64, error) {
	var v int64
	if err := runtime.BindQueryParameter("form", true, required, name, r.URL.Query(), &v); err != nil {
		return 0, fmt.Errorf("%w: %s", domain.ErrValidation, name)
	}
	return v, nil
}

// clientIP prefers the proxy header set by the ingress.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
