//go:build !integration

package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mymedaga-payments/internal/config"
	"mymedaga-payments/internal/domain"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/adapter"
	"mymedaga-payments/internal/infra/security"
)

// recorder captures what an adapter sent and replies with a canned answer per path.
type recorder struct {
	mu       sync.Mutex
	requests []*recorded
	replies  map[string]reply
}

type recorded struct {
	method string
	path   string
	header http.Header
	body   []byte
}

type reply struct {
	status int
	body   string
}

func newRecorder(t *testing.T, replies map[string]reply) (*recorder, *httptest.Server) {
	t.Helper()
	rec := &recorder{replies: replies}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.requests = append(rec.requests, &recorded{method: r.Method, path: r.URL.Path, header: r.Header.Clone(), body: b})
		rec.mu.Unlock()
		rp, ok := replies[r.Method+" "+r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(rp.status)
		_, _ = w.Write([]byte(rp.body))
	}))
	t.Cleanup(srv.Close)
	return rec, srv
}

func (r *recorder) last(t *testing.T) *recorded {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.requests, "no request reached the server")
	return r.requests[len(r.requests)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func (r *recorded) json(t *testing.T) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(r.body, &out))
	return out
}

func testOpts() Options {
	return Options{Environment: config.EnvSandbox, Timeout: 2 * time.Second}
}

func initReq(txID string) adapter.InitiateRequest {
	return adapter.InitiateRequest{
		Amount:        decimal.NewFromInt(5000),
		Currency:      "XOF",
		Phone:         "07 07 07 07 07",
		Email:         "awa@example.com",
		Description:   "Commande 42",
		TransactionID: txID,
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		raw, cc, want string
		wantErr       bool
	}{
		{raw: "07 07 07 07 07", cc: CountryCI, want: "225707070707"},
		{raw: "+225 07 07 07 07 07", cc: CountryCI, want: "2250707070707"},
		{raw: "00229 97 00 00 00", cc: CountryBJ, want: "22997000000"},
		{raw: "0670000000", cc: CountryCM, want: "237670000000"},
		{raw: "771234567", cc: "", want: "771234567"},
		{raw: "12-34", cc: CountryCI, wantErr: true},
		{raw: "", cc: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.raw, tc.cc)
		if tc.wantErr {
			assert.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestMapStatus(t *testing.T) {
	for _, s := range []string{"SUCCESS", "successful", "Completed", "paid", "succeeded", "APPROVED", "ACCEPTED"} {
		assert.Equal(t, model.ProviderStatusCompleted, MapStatus(s), s)
	}
	for _, s := range []string{"FAILED", "cancelled", "REJECTED", "declined", "expired"} {
		assert.Equal(t, model.ProviderStatusFailed, MapStatus(s), s)
	}
	for _, s := range []string{"", "PENDING", "processing", "weird"} {
		assert.Equal(t, model.ProviderStatusPending, MapStatus(s), s)
	}
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(5000), minorUnits(decimal.NewFromInt(5000), "XOF"))
	assert.Equal(t, int64(1999), minorUnits(decimal.RequireFromString("19.99"), "EUR"))
	assert.Equal(t, int64(100), minorUnits(decimal.RequireFromString("99.6"), "xaf"))
}

func TestAdapters_MissingCredentialsNeverCallNetwork(t *testing.T) {
	rec, srv := newRecorder(t, nil)
	cfg := config.ProviderConfig{BaseURL: srv.URL}
	providers := []adapter.Provider{
		NewOrangeMoney(cfg, testOpts()),
		NewMoovMoney(cfg, testOpts()),
		NewMTNMoney(cfg, testOpts()),
		NewWave(cfg, testOpts()),
		NewPayDunya(cfg, testOpts()),
		NewStripe(cfg, 1, testOpts()),
		NewPayPal(cfg, testOpts()),
		NewCinetPay(cfg, testOpts()),
		NewFedaPay(cfg, testOpts()),
		NewPaystack(cfg, testOpts()),
	}
	ctx := context.Background()
	for _, p := range providers {
		res := p.InitiatePayment(ctx, initReq("ORD1_1"))
		assert.False(t, res.Success, p.Method())
		assert.Contains(t, res.Error, "ConfigurationError", p.Method())

		res = p.VerifyPayment(ctx, adapter.VerifyRequest{TransactionID: "ORD1_1", ExternalID: "x"})
		assert.False(t, res.Success, p.Method())
		assert.Contains(t, res.Error, "ConfigurationError", p.Method())
	}
	assert.Zero(t, rec.count())
}

func TestAdapters_RejectNonPositiveAmount(t *testing.T) {
	rec, srv := newRecorder(t, nil)
	p := NewWave(config.ProviderConfig{APIKey: "k", BaseURL: srv.URL}, testOpts())
	req := initReq("ORD1_1")
	req.Amount = decimal.Zero
	res := p.InitiatePayment(context.Background(), req)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "amount")
	assert.Zero(t, rec.count())
}

func TestOrangeMoney_InitiateSignsBody(t *testing.T) {
	rec, srv := newRecorder(t, map[string]reply{
		"POST /cashin": {status: 201, body: `{"pay_token":"tok-1","payment_url":"https://pay.orange/tok-1"}`},
	})
	p := NewOrangeMoney(config.ProviderConfig{APIKey: "merchant", APISecret: "s3cret", BaseURL: srv.URL}, testOpts())

	res := p.InitiatePayment(context.Background(), initReq("ORD42_1717000000"))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, model.ProviderStatusPending, res.Status)
	assert.Equal(t, "tok-1", res.ExternalID)
	assert.Equal(t, "https://pay.orange/tok-1", res.PaymentURL)

	sent := rec.last(t)
	assert.Equal(t, "Bearer merchant", sent.header.Get("Authorization"))
	body := sent.json(t)
	assert.Equal(t, "ORD42_1717000000", body["order_id"])
	assert.Equal(t, "5000", body["amount"])
	assert.Equal(t, "225707070707", body["customer_msisdn"])
	sig, _ := body[security.SignatureField].(string)
	assert.True(t, security.Verify("s3cret", body, sig), "body signature must verify")
}

func TestOrangeMoney_Verify(t *testing.T) {
	_, srv := newRecorder(t, map[string]reply{
		"GET /transaction/ORD42_1": {status: 200, body: `{"status":"SUCCESS","txnid":"MP1234"}`},
	})
	p := NewOrangeMoney(config.ProviderConfig{APIKey: "merchant", BaseURL: srv.URL}, testOpts())
	res := p.VerifyPayment(context.Background(), adapter.VerifyRequest{TransactionID: "ORD42_1"})
	require.True(t, res.Success)
	assert.Equal(t, model.ProviderStatusCompleted, res.Status)
	assert.Equal(t, "MP1234", res.ExternalID)
}

func TestAdapters_Non2xxIsTruncated(t *testing.T) {
	long := strings.Repeat("x", 2000)
	_, srv := newRecorder(t, map[string]reply{
		"POST /payments/initiate": {status: 502, body: long},
	})
	p := NewMoovMoney(config.ProviderConfig{APIKey: "k", BaseURL: srv.URL}, testOpts())
	res := p.InitiatePayment(context.Background(), initReq("ORD1_1"))
	require.False(t, res.Success)
	assert.True(t, strings.HasPrefix(res.Error, "http 502: "), res.Error)
	assert.Len(t, res.Error, len("http 502: ")+maxErrorBody)
	assert.Equal(t, 502, res.ProviderResponse["http_status"])
}

func TestAdapters_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()
	opts := testOpts()
	opts.Timeout = 50 * time.Millisecond
	p := NewWave(config.ProviderConfig{APIKey: "k", BaseURL: srv.URL}, opts)
	res := p.InitiatePayment(context.Background(), initReq("ORD1_1"))
	require.False(t, res.Success)
	assert.Equal(t, "timeout", res.Error)
}

func TestAdapters_UndecodableBody(t *testing.T) {
	_, srv := newRecorder(t, map[string]reply{
		"POST /checkout/initialize": {status: 200, body: `<html>oops</html>`},
	})
	p := NewWave(config.ProviderConfig{APIKey: "k", BaseURL: srv.URL}, testOpts())
	res := p.InitiatePayment(context.Background(), initReq("ORD1_1"))
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "decode response")
}

func TestMTNMoney_TokenThenRequestToPay(t *testing.T) {
	rec, srv := newRecorder(t, map[string]reply{
		"POST /collection/token/":            {status: 200, body: `{"access_token":"at-1"}`},
		"POST /collection/v1_0/requesttopay": {status: 202, body: ``},
	})
	p := NewMTNMoney(config.ProviderConfig{APIKey: "user", APISecret: "pass", Token: "sub-key", BaseURL: srv.URL}, testOpts())
	req := initReq("SUB7_1717000000")
	req.Phone = "0670000000"
	res := p.InitiatePayment(context.Background(), req)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, ReferenceID("SUB7_1717000000"), res.ExternalID)
	require.Equal(t, 2, rec.count())

	token := rec.requests[0]
	user, pass, ok := (&http.Request{Header: token.header}).BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "user", user)
	assert.Equal(t, "pass", pass)

	pay := rec.last(t)
	assert.Equal(t, "Bearer at-1", pay.header.Get("Authorization"))
	assert.Equal(t, "sandbox", pay.header.Get("X-Target-Environment"))
	assert.Equal(t, "sub-key", pay.header.Get("Ocp-Apim-Subscription-Key"))
	assert.Equal(t, res.ExternalID, pay.header.Get("X-Reference-Id"))
	payer, _ := pay.json(t)["payer"].(map[string]any)
	assert.Equal(t, "237670000000", payer["partyId"])
}

func TestMTNMoney_ReferenceIsStable(t *testing.T) {
	assert.Equal(t, ReferenceID("ORD1_1"), ReferenceID("ORD1_1"))
	assert.NotEqual(t, ReferenceID("ORD1_1"), ReferenceID("ORD1_2"))
}

func TestMTNMoney_InvalidPhone(t *testing.T) {
	rec, srv := newRecorder(t, nil)
	p := NewMTNMoney(config.ProviderConfig{APIKey: "user", APISecret: "pass", BaseURL: srv.URL}, testOpts())
	req := initReq("ORD1_1")
	req.Phone = "123"
	res := p.InitiatePayment(context.Background(), req)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "validation")
	assert.Zero(t, rec.count())
}

func TestPayPal_ApprovalAndCapture(t *testing.T) {
	rec, srv := newRecorder(t, map[string]reply{
		"POST /v1/oauth2/token":                     {status: 200, body: `{"access_token":"pp-token"}`},
		"POST /v2/checkout/orders":                  {status: 201, body: `{"id":"5O190127","status":"CREATED","links":[{"rel":"self","href":"x"},{"rel":"approve","href":"https://paypal/approve"}]}`},
		"GET /v2/checkout/orders/5O190127":          {status: 200, body: `{"id":"5O190127","status":"APPROVED"}`},
		"POST /v2/checkout/orders/5O190127/capture": {status: 201, body: `{"id":"5O190127","status":"COMPLETED"}`},
	})
	p := NewPayPal(config.ProviderConfig{ClientID: "cid", ClientSecret: "cs", BaseURL: srv.URL}, testOpts())

	req := initReq("PRO3_1")
	req.Currency = "EUR"
	res := p.InitiatePayment(context.Background(), req)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "https://paypal/approve", res.PaymentURL)
	assert.Equal(t, "5O190127", res.ExternalID)
	assert.Equal(t, "PRO3_1", rec.last(t).header.Get("PayPal-Request-Id"))

	res = p.VerifyPayment(context.Background(), adapter.VerifyRequest{TransactionID: "PRO3_1", ExternalID: "5O190127"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, model.ProviderStatusCompleted, res.Status)
	assert.Equal(t, "/v2/checkout/orders/5O190127/capture", rec.last(t).path)

	res = p.VerifyPayment(context.Background(), adapter.VerifyRequest{TransactionID: "PRO3_1"})
	assert.False(t, res.Success)
}

func TestPaystack_RequiresEmailAndSubaccount(t *testing.T) {
	rec, srv := newRecorder(t, map[string]reply{
		"POST /transaction/initialize": {status: 200, body: `{"status":true,"data":{"authorization_url":"https://checkout.paystack/abc","access_code":"abc"}}`},
	})
	p := NewPaystack(config.ProviderConfig{APISecret: "sk", BaseURL: srv.URL}, testOpts())

	req := initReq("ORD9_1")
	req.Email = ""
	res := p.InitiatePayment(context.Background(), req)
	assert.False(t, res.Success)
	assert.Zero(t, rec.count())

	req = initReq("ORD9_1")
	req.Metadata = map[string]string{MetaPaystackSubaccount: "ACCT_x"}
	res = p.InitiatePayment(context.Background(), req)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "https://checkout.paystack/abc", res.PaymentURL)
	body := rec.last(t).json(t)
	assert.Equal(t, "ACCT_x", body["subaccount"])
	assert.EqualValues(t, 500000, body["amount"])
}

func TestCinetPay_VerifyReadsNestedStatus(t *testing.T) {
	_, srv := newRecorder(t, map[string]reply{
		"POST /v2/payment/check": {status: 200, body: `{"code":"00","data":{"status":"REFUSED"}}`},
	})
	p := NewCinetPay(config.ProviderConfig{APIKey: "k", SiteID: "site", BaseURL: srv.URL}, testOpts())
	res := p.VerifyPayment(context.Background(), adapter.VerifyRequest{TransactionID: "ORD1_1"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, model.ProviderStatusFailed, res.Status)
}

func TestStripe_CreatesDestinationIntent(t *testing.T) {
	var (
		mu   sync.Mutex
		form map[string][]string
		idem string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		mu.Lock()
		form = r.PostForm
		idem = r.Header.Get("Idempotency-Key")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","amount":5000,"currency":"xof","status":"requires_payment_method","client_secret":"pi_123_secret_abc"}`))
	}))
	defer srv.Close()

	p := NewStripe(config.ProviderConfig{APISecret: "sk_test", PublishableKey: "pk_test", BaseURL: srv.URL}, 1, testOpts())
	req := initReq("ORD42_1")
	req.Metadata = map[string]string{MetaStripeAccount: "acct_1", MetaPaymentID: "01HPAY"}
	res := p.InitiatePayment(context.Background(), req)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "pi_123", res.ExternalID)
	assert.Equal(t, "pi_123_secret_abc", res.ProviderResponse[MetaClientSecret])
	assert.Equal(t, "pk_test", res.ProviderResponse[MetaPublishableKey])
	assert.True(t, p.GuaranteesWebhook())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "ORD42_1", idem)
	assert.Equal(t, []string{"5000"}, form["amount"])
	assert.Equal(t, []string{"acct_1"}, form["transfer_data[destination]"])
	assert.Equal(t, []string{"50"}, form["application_fee_amount"])
	assert.Equal(t, []string{"ORD42_1"}, form["metadata[transaction_id]"])
	assert.Equal(t, []string{"01HPAY"}, form["metadata[payment_id]"])
}

func TestStripe_ApplicationFee(t *testing.T) {
	p := NewStripe(config.ProviderConfig{}, 1, testOpts())
	assert.Equal(t, int64(100), p.ApplicationFee(10000))
	assert.Equal(t, int64(0), p.ApplicationFee(40))
}

func TestCheckPhone(t *testing.T) {
	cases := []struct {
		method model.PaymentMethod
		phone  string
		ok     bool
	}{
		{model.MethodMTN, "670 00 00 00", true},
		{model.MethodMTN, "", false},
		{model.MethodMoovMoney, "123", false},
		{model.MethodOrangeMoney, "", true},
		{model.MethodOrangeMoney, "12", false},
		{model.MethodWave, "+225 07 07 07 07", true},
		{model.MethodStripe, "", true},
		{model.MethodCinetPay, "1", true},
	}
	for _, tc := range cases {
		err := CheckPhone(tc.method, tc.phone)
		if tc.ok {
			assert.NoError(t, err, "%s %q", tc.method, tc.phone)
		} else {
			assert.ErrorIs(t, err, domain.ErrValidation, "%s %q", tc.method, tc.phone)
		}
	}
}
