package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bridge
type Metrics struct {
	LoginsAccepted      prometheus.Counter
	SkipAccepts         prometheus.Counter
	StateMismatches     prometheus.Counter
	ConsentAutoAccepts  prometheus.Counter
	ConsentPrompts      prometheus.Counter
	TokenExchanges      prometheus.Counter
	TokenExchangeErrors prometheus.Counter
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return newWith(prometheus.DefaultRegisterer)
}

// NewForTest creates metrics on a private registry so parallel tests do
// not collide on the default one.
func NewForTest() *Metrics {
	return newWith(prometheus.NewRegistry())
}

func newWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoginsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "authbridge_logins_accepted_total",
			Help: "Login requests accepted after verifying an identity provider session",
		}),
		SkipAccepts: factory.NewCounter(prometheus.CounterOpts{
			Name: "authbridge_skip_accepts_total",
			Help: "Login requests accepted because the authorization server reported skip",
		}),
		StateMismatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "authbridge_state_mismatches_total",
			Help: "Login callbacks rejected because the state nonce did not match the cookie",
		}),
		ConsentAutoAccepts: factory.NewCounter(prometheus.CounterOpts{
			Name: "authbridge_consent_auto_accepts_total",
			Help: "Consent requests auto-accepted via skip or the trusted client allowlist",
		}),
		ConsentPrompts: factory.NewCounter(prometheus.CounterOpts{
			Name: "authbridge_consent_prompts_total",
			Help: "Consent requests that required showing the consent prompt",
		}),
		TokenExchanges: factory.NewCounter(prometheus.CounterOpts{
			Name: "authbridge_token_exchanges_total",
			Help: "Successful authorization code exchanges",
		}),
		TokenExchangeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "authbridge_token_exchange_errors_total",
			Help: "Failed authorization code exchanges",
		}),
	}
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
