package services

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Claim outcome label values.
const (
	outcomeClaimed        = "claimed"
	outcomeMaxReached     = "max_reached"
	outcomeBotNotFound    = "bot_not_found"
	outcomeUserNotAllowed = "user_not_allowed"
	outcomeConflict       = "conflict"
	outcomeKeyReused      = "key_reused"
	outcomeReplayed       = "replayed"
	outcomeError          = "error"
)

var (
	// claimsTotal counts claim attempts by outcome.
	claimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "house_claims_total",
			Help: "Total number of house claim attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// claimTxDuration records how long the claim transaction held the user lock.
	claimTxDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "house_claim_tx_duration_seconds",
			Help:    "Duration of claim transactions in seconds.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)
)

func init() {
	prometheus.MustRegister(claimsTotal, claimTxDuration)
}

// loggerFor returns the request-scoped logger carried by ctx, or the global
// logger when none is attached.
func loggerFor(ctx context.Context) *zerolog.Logger {
	if lg := zerolog.Ctx(ctx); lg.GetLevel() != zerolog.Disabled {
		return lg
	}
	return &log.Logger
}
