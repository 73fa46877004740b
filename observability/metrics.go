package observability

import (
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics tracks the compounding vault's operational counters.
type VaultMetrics struct {
	claims       *prometheus.CounterVec
	claimLatency prometheus.Histogram
	compounded   prometheus.Counter
	oracleErrors prometheus.Counter
	previews     prometheus.Counter
}

var (
	vaultMetricsOnce sync.Once
	vaultRegistry    *VaultMetrics
)

// Vault returns the lazily-initialised metrics registry for the vault engine
// and its HTTP surface.
func Vault() *VaultMetrics {
	vaultMetricsOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			claims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nhb",
				Subsystem: "vault",
				Name:      "claims_total",
				Help:      "Total claim attempts segmented by outcome.",
			}, []string{"outcome"}),
			claimLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "nhb",
				Subsystem: "vault",
				Name:      "claim_duration_seconds",
				Help:      "Latency distribution for full claim cycles.",
				Buckets:   prometheus.DefBuckets,
			}),
			compounded: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nhb",
				Subsystem: "vault",
				Name:      "compounded_asset_total",
				Help:      "Cumulative pooled-asset amount compounded back into the reward pool.",
			}),
			oracleErrors: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nhb",
				Subsystem: "vault",
				Name:      "oracle_errors_total",
				Help:      "Count of price oracle lookups that failed or returned invalid quotes.",
			}),
			previews: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nhb",
				Subsystem: "vault",
				Name:      "previews_total",
				Help:      "Count of read-only reward previews served.",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.claims,
			vaultRegistry.claimLatency,
			vaultRegistry.compounded,
			vaultRegistry.oracleErrors,
			vaultRegistry.previews,
		)
	})
	return vaultRegistry
}

// RecordClaim captures the outcome and latency of one claim attempt and, on
// success, the compounded asset amount.
func (m *VaultMetrics) RecordClaim(outcome string, duration time.Duration, compounded *big.Int) {
	if m == nil {
		return
	}
	label := strings.TrimSpace(strings.ToLower(outcome))
	if label == "" {
		label = "unknown"
	}
	m.claims.WithLabelValues(label).Inc()
	m.claimLatency.Observe(duration.Seconds())
	if compounded != nil && compounded.Sign() > 0 {
		m.compounded.Add(amountToFloat(compounded))
	}
}

// RecordOracleError counts a failed or invalid price lookup.
func (m *VaultMetrics) RecordOracleError() {
	if m == nil {
		return
	}
	m.oracleErrors.Inc()
}

// RecordPreview counts a served reward preview.
func (m *VaultMetrics) RecordPreview() {
	if m == nil {
		return
	}
	m.previews.Inc()
}

// amountToFloat converts a big integer amount for counter export. Precision
// loss past float64 range is acceptable for monitoring purposes.
func amountToFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}
