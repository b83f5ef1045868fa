// Package provider holds one adapter per payment provider plus the registry
// that resolves them. Adapters translate a provider's HTTP API into
// model.ProviderResult values and never return errors past that boundary.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"mymedaga-payments/internal/config"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/infra/metrics"
)

const (
	maxErrorBody    = 512
	maxResponseBody = 1 << 20
)

// Options are shared by every adapter built by the registry.
type Options struct {
	Environment string // sandbox | production
	Timeout     time.Duration
	HTTPClient  *http.Client // overrides Timeout when set
	Logger      *zerolog.Logger
}

func (o Options) production() bool { return o.Environment == config.EnvProduction }

// StatusError is a non-2xx provider answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// base carries what all HTTP adapters share: credentials, the client and the
// resolved base URL.
type base struct {
	method  model.PaymentMethod
	cfg     config.ProviderConfig
	prod    bool
	client  *http.Client
	log     *zerolog.Logger
	baseURL string
}

func newBase(method model.PaymentMethod, cfg config.ProviderConfig, opts Options, sandboxURL, prodURL string) base {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "Provider").Str("method", string(method)).Logger()

	u := sandboxURL
	if opts.production() {
		u = prodURL
	}
	if cfg.BaseURL != "" {
		u = cfg.BaseURL
	}
	return base{
		method:  method,
		cfg:     cfg,
		prod:    opts.production(),
		client:  client,
		log:     &l,
		baseURL: strings.TrimRight(u, "/"),
	}
}

func (b *base) Method() model.PaymentMethod { return b.method }

// missing reports the first empty credential, as a configuration failure.
func (b *base) missing(fields map[string]string) (model.ProviderResult, bool) {
	for _, name := range sortedKeys(fields) {
		if strings.TrimSpace(fields[name]) == "" {
			return model.Failure(fmt.Sprintf("ConfigurationError: %s is not configured (%s missing)", b.method.DisplayName(), name), nil), true
		}
	}
	return model.ProviderResult{}, false
}

// request is one outbound call. Body is JSON-encoded unless it is url.Values.
type request struct {
	op      string // initiate | verify | token
	method  string
	path    string
	headers map[string]string
	body    any
	auth    *basicAuth
}

type basicAuth struct{ user, pass string }

// do performs the call and decodes a JSON object answer. An empty body decodes to an empty map.
func (b *base) do(ctx context.Context, r request) (map[string]any, error) {
	start := time.Now()
	out, err := b.roundTrip(ctx, r)
	metrics.ObserveProviderCall(string(b.method), r.op, callResult(err), time.Since(start))
	if err != nil {
		b.log.Warn().Err(err).Str("op", r.op).Str("path", r.path).Msg("provider call failed")
	}
	return out, err
}

func (b *base) roundTrip(ctx context.Context, r request) (map[string]any, error) {
	var (
		body        io.Reader
		contentType string
	)
	switch v := r.body.(type) {
	case nil:
	case url.Values:
		body = strings.NewReader(v.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}

	target := r.path
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = b.baseURL + r.path
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	if r.auth != nil {
		req.SetBasicAuth(r.auth.user, r.auth.pass)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(raw), maxErrorBody)}
	}
	out := map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// failed converts a transport or protocol error to a Result.
func failed(err error) model.ProviderResult {
	if isTimeout(err) {
		return model.Failure("timeout", nil)
	}
	var se *StatusError
	if errors.As(err, &se) {
		return model.Failure(se.Error(), map[string]any{"http_status": se.Code, "body": se.Body})
	}
	return model.Failure(err.Error(), nil)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func callResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case isTimeout(err):
		return "timeout"
	default:
		return "fail"
	}
}

func pending(externalID, paymentURL string, resp map[string]any) model.ProviderResult {
	return model.ProviderResult{
		Success:          true,
		Status:           model.ProviderStatusPending,
		ExternalID:       externalID,
		PaymentURL:       paymentURL,
		ProviderResponse: resp,
	}
}

func verified(status string, externalID string, resp map[string]any) model.ProviderResult {
	return model.ProviderResult{
		Success:          true,
		Status:           MapStatus(status),
		ExternalID:       externalID,
		ProviderResponse: resp,
	}
}

func validateAmount(req decimal.Decimal) (model.ProviderResult, bool) {
	if !req.IsPositive() {
		return model.Failure("ValidationError: amount must be greater than zero", nil), true
	}
	return model.ProviderResult{}, false
}

func describe(description, transactionID string) string {
	if strings.TrimSpace(description) != "" {
		return description
	}
	return "Paiement " + transactionID
}

func currencyOr(c, fallback string) string {
	if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
		return c
	}
	return fallback
}

// str reads a string at a dotted path of a decoded JSON object.
func str(m map[string]any, path string) string {
	var cur any = m
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = obj[part]
	}
	switch v := cur.(type) {
	case string:
		return v
	case float64:
		return decimal.NewFromFloat(v).String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
