package provider

import (
	"fmt"
	"strings"
	"sync"

	"mymedaga-payments/internal/config"
	"mymedaga-payments/internal/domain"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/adapter"
)

// Registry maps payment methods to adapters. Adapters for unconfigured
// providers are still registered; they fail every call with a configuration
// error and are left out of ListAvailableMethods.
type Registry struct {
	mu        sync.RWMutex
	providers map[model.PaymentMethod]adapter.Provider
	required  map[model.PaymentMethod]map[string]string
	manual    map[model.PaymentMethod]string
}

// NewRegistry builds the ten adapters from the injected provider configuration.
func NewRegistry(cfg config.ProvidersConfig, opts Options) *Registry {
	if opts.Timeout <= 0 {
		opts.Timeout = cfg.Timeout
	}
	r := &Registry{
		providers: make(map[model.PaymentMethod]adapter.Provider, len(model.AllMethods)),
		required:  requiredKeys(cfg),
		manual:    map[model.PaymentMethod]string{},
	}
	for _, p := range []adapter.Provider{
		NewOrangeMoney(cfg.OrangeMoney, opts),
		NewMoovMoney(cfg.MoovMoney, opts),
		NewMTNMoney(cfg.MTN, opts),
		NewWave(cfg.Wave, opts),
		NewPayDunya(cfg.PayDunya, opts),
		NewStripe(cfg.Stripe, cfg.StripeFeePercent, opts),
		NewPayPal(cfg.PayPal, opts),
		NewCinetPay(cfg.CinetPay, opts),
		NewFedaPay(cfg.FedaPay, opts),
		NewPaystack(cfg.Paystack, opts),
	} {
		r.providers[p.Method()] = p
	}
	for m, pc := range map[model.PaymentMethod]config.ProviderConfig{
		model.MethodOrangeMoney: cfg.OrangeMoney,
		model.MethodMoovMoney:   cfg.MoovMoney,
		model.MethodMTN:         cfg.MTN,
		model.MethodWave:        cfg.Wave,
	} {
		if pc.ManualNumber != "" {
			r.manual[m] = pc.ManualNumber
		}
	}
	return r
}

func requiredKeys(cfg config.ProvidersConfig) map[model.PaymentMethod]map[string]string {
	return map[model.PaymentMethod]map[string]string{
		model.MethodOrangeMoney: {"api_key": cfg.OrangeMoney.APIKey},
		model.MethodMoovMoney:   {"api_key": cfg.MoovMoney.APIKey},
		model.MethodMTN:         {"api_key": cfg.MTN.APIKey, "api_secret": cfg.MTN.APISecret},
		model.MethodWave:        {"api_key": cfg.Wave.APIKey},
		model.MethodPayDunya:    {"master_key": cfg.PayDunya.APIKey},
		model.MethodCinetPay:    {"api_key": cfg.CinetPay.APIKey, "site_id": cfg.CinetPay.SiteID},
		model.MethodStripe:      {"secret_key": cfg.Stripe.APISecret, "publishable_key": cfg.Stripe.PublishableKey},
		model.MethodPayPal:      {"client_id": cfg.PayPal.ClientID, "client_secret": cfg.PayPal.ClientSecret},
		model.MethodFedaPay:     {"secret_key": cfg.FedaPay.APISecret},
		model.MethodPaystack:    {"secret_key": cfg.Paystack.APISecret},
	}
}

// WebhookSecrets returns the per-method callback secrets. Stripe events are
// verified separately with the Stripe webhook secret.
func WebhookSecrets(cfg config.ProvidersConfig) map[model.PaymentMethod]string {
	out := map[model.PaymentMethod]string{}
	for m, pc := range map[model.PaymentMethod]config.ProviderConfig{
		model.MethodOrangeMoney: cfg.OrangeMoney,
		model.MethodMoovMoney:   cfg.MoovMoney,
		model.MethodMTN:         cfg.MTN,
		model.MethodWave:        cfg.Wave,
		model.MethodPayDunya:    cfg.PayDunya,
		model.MethodPayPal:      cfg.PayPal,
		model.MethodCinetPay:    cfg.CinetPay,
		model.MethodFedaPay:     cfg.FedaPay,
		model.MethodPaystack:    cfg.Paystack,
	} {
		if pc.WebhookSecret != "" {
			out[m] = pc.WebhookSecret
		}
	}
	return out
}

// Register installs or replaces the adapter for p.Method(). A registered
// adapter counts as configured.
func (r *Registry) Register(p adapter.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Method()] = p
	delete(r.required, p.Method())
}

// Resolve returns the adapter for a method code. Aliases such as "orange" are accepted.
func (r *Registry) Resolve(method string) (adapter.Provider, error) {
	m, ok := model.ParseMethod(method)
	if !ok {
		return nil, fmt.Errorf("%w: %w %q", domain.ErrConfiguration, domain.ErrUnknownMethod, method)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[m]
	if !ok {
		return nil, fmt.Errorf("%w: no adapter for %s", domain.ErrConfiguration, m)
	}
	return p, nil
}

// Configured reports whether every required credential of method is set.
func (r *Registry) Configured(m model.PaymentMethod) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.providers[m]; !ok {
		return false
	}
	for _, v := range r.required[m] {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// ListAvailableMethods returns configured methods, filtered by the store's
// own merchant accounts when a store is given.
func (r *Registry) ListAvailableMethods(store *model.Store) []model.MethodInfo {
	out := make([]model.MethodInfo, 0, len(model.AllMethods))
	for _, m := range model.AllMethods {
		if !r.Configured(m) || !storeSupports(store, m) {
			continue
		}
		out = append(out, model.MethodInfo{
			Code:         m,
			Name:         m.DisplayName(),
			MobileMoney:  m.IsMobileMoney(),
			Instructions: r.instructions(m),
		})
	}
	return out
}

func storeSupports(store *model.Store, m model.PaymentMethod) bool {
	if store == nil {
		return true
	}
	switch m {
	case model.MethodFedaPay:
		return store.FedaPayMerchantID != ""
	case model.MethodPaystack:
		return store.PaystackSubaccount != ""
	case model.MethodStripe:
		return store.StripeAccountID != ""
	}
	return true
}

func (r *Registry) instructions(m model.PaymentMethod) string {
	r.mu.RLock()
	number := r.manual[m]
	r.mu.RUnlock()
	if number == "" {
		return ""
	}
	return fmt.Sprintf("Faites un paiement %s au %s et entrez le code de transaction reçu.", m.DisplayName(), number)
}

// StoreMetadata returns the adapter metadata routing a payment to the store's
// merchant account for m.
func StoreMetadata(store *model.Store, m model.PaymentMethod) map[string]string {
	if store == nil {
		return nil
	}
	switch m {
	case model.MethodFedaPay:
		if store.FedaPayMerchantID != "" {
			return map[string]string{MetaFedaPayMerchant: store.FedaPayMerchantID}
		}
	case model.MethodPaystack:
		if store.PaystackSubaccount != "" {
			return map[string]string{MetaPaystackSubaccount: store.PaystackSubaccount}
		}
	case model.MethodStripe:
		if store.StripeAccountID != "" {
			return map[string]string{MetaStripeAccount: store.StripeAccountID}
		}
	}
	return nil
}
