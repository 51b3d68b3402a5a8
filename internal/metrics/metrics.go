package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dripper_http_attempts_total", Help: "Outbound HTTP attempts by outcome"},
		[]string{"outcome"},
	)
	FaucetClaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dripper_faucet_claims_total", Help: "Faucet claims by result"},
		[]string{"network", "result"},
	)
	Transactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dripper_transactions_total", Help: "Submitted transactions by workflow and status"},
		[]string{"network", "workflow", "status"},
	)
	WalletsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dripper_wallets_created_total", Help: "Generated wallets persisted to the ledger"},
		[]string{"network"},
	)
	WSClients = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "dripper_ws_clients", Help: "Connected websocket event subscribers"},
	)
)

var once sync.Once

// Init registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(HTTPAttempts, FaucetClaims, Transactions, WalletsCreated, WSClients)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
