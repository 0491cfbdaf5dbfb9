package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketMetrics aggregates the marketplace settlement counters exposed on the
// Prometheus endpoint.
type MarketMetrics struct {
	listingsCreated   *prometheus.CounterVec
	listingsCancelled prometheus.Counter
	bidsPlaced        *prometheus.CounterVec
	bidsDisplaced     prometheus.Counter
	settlements       *prometheus.CounterVec
	refundsPaid       *prometheus.CounterVec
	earningsPaid      *prometheus.CounterVec
	tradingPaused     prometheus.Gauge
	rpcRequests       *prometheus.CounterVec
	rpcDuration       *prometheus.HistogramVec
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

// Market returns the process-wide marketplace metrics, registering them on
// first use.
func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			listingsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_listings_created_total",
				Help: "Count of listings created by payment method.",
			}, []string{"payment"}),
			listingsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_listings_cancelled_total",
				Help: "Count of listings cancelled by their seller.",
			}),
			bidsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_bids_placed_total",
				Help: "Count of accepted bids by payment method.",
			}, []string{"payment"}),
			bidsDisplaced: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_bids_displaced_total",
				Help: "Count of bids displaced into the refund ledger.",
			}),
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_settlements_total",
				Help: "Count of completed settlements by path (accept or buy).",
			}, []string{"path"}),
			refundsPaid: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_refunds_paid_total",
				Help: "Count of refund withdrawals by payment method.",
			}, []string{"payment"}),
			earningsPaid: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_earnings_paid_total",
				Help: "Count of operator earnings withdrawals by payment method.",
			}, []string{"payment"}),
			tradingPaused: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "market_trading_paused",
				Help: "Whether trading is currently paused (1) or running (0).",
			}),
			rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_rpc_requests_total",
				Help: "Count of JSON-RPC requests by method and outcome.",
			}, []string{"method", "outcome"}),
			rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "market_rpc_duration_seconds",
				Help:    "JSON-RPC handler latency by method.",
				Buckets: prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			marketRegistry.listingsCreated,
			marketRegistry.listingsCancelled,
			marketRegistry.bidsPlaced,
			marketRegistry.bidsDisplaced,
			marketRegistry.settlements,
			marketRegistry.refundsPaid,
			marketRegistry.earningsPaid,
			marketRegistry.tradingPaused,
			marketRegistry.rpcRequests,
			marketRegistry.rpcDuration,
		)
	})
	return marketRegistry
}

func (m *MarketMetrics) ObserveListingCreated(payment string) {
	if m == nil {
		return
	}
	m.listingsCreated.WithLabelValues(payment).Inc()
}

func (m *MarketMetrics) ObserveListingCancelled() {
	if m == nil {
		return
	}
	m.listingsCancelled.Inc()
}

func (m *MarketMetrics) ObserveBidPlaced(payment string) {
	if m == nil {
		return
	}
	m.bidsPlaced.WithLabelValues(payment).Inc()
}

func (m *MarketMetrics) ObserveBidDisplaced() {
	if m == nil {
		return
	}
	m.bidsDisplaced.Inc()
}

func (m *MarketMetrics) ObserveSettlement(path string) {
	if m == nil {
		return
	}
	if path == "" {
		path = "unknown"
	}
	m.settlements.WithLabelValues(path).Inc()
}

func (m *MarketMetrics) ObserveRefundPaid(payment string) {
	if m == nil {
		return
	}
	m.refundsPaid.WithLabelValues(payment).Inc()
}

func (m *MarketMetrics) ObserveEarningsPaid(payment string) {
	if m == nil {
		return
	}
	m.earningsPaid.WithLabelValues(payment).Inc()
}

func (m *MarketMetrics) SetTradingPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.tradingPaused.Set(1)
		return
	}
	m.tradingPaused.Set(0)
}

func (m *MarketMetrics) ObserveRPC(method, outcome string, started time.Time) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.rpcRequests.WithLabelValues(method, outcome).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())
}
