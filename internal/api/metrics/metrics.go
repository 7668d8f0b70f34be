// Package metrics defines and registers all custom Prometheus metrics for the
// whisper API. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default Prometheus registry through promauto
// when the package is imported.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "whisper"

// ── Send gate ────────────────────────────────────────────────────────────────

// SendAttemptsTotal counts send attempts by outcome.
// Label:
//   - result: "accepted", "replayed", "not_approved", "frozen", "temp_banned",
//     "window_mismatch", "invalid_recipient" or "error"
var SendAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "send_attempts_total",
		Help:      "Total number of send attempts, labelled by outcome.",
	},
	[]string{"result"},
)

// IdempotencyLookupsTotal counts Idempotency-Key lookups.
// Label:
//   - result: "hit", "miss", "in_progress" or "error"
var IdempotencyLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "idempotency_lookups_total",
		Help:      "Total number of idempotency key lookups, labelled by result.",
	},
	[]string{"result"},
)

// ── Moderation ledger ────────────────────────────────────────────────────────

// ModerationActionsTotal counts committed moderation transitions.
// Label:
//   - action: audit action type (e.g. "warn", "ban_temp_5min")
var ModerationActionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "moderation_actions_total",
		Help:      "Total number of committed moderation transitions.",
	},
	[]string{"action"},
)

// LedgerConflictsTotal counts compare-and-swap conflicts that forced a retry.
var LedgerConflictsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_version_conflicts_total",
		Help:      "Total number of moderation record version conflicts.",
	},
)

// LedgerApplyDuration measures a transition from dispatch to commit.
// Label:
//   - action: audit action type, or "error" on failure
var LedgerApplyDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ledger_apply_duration_seconds",
		Help:      "Duration of moderation transitions from dispatch to commit.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"action"},
)

// LedgerQueueDepth tracks jobs waiting in each keyed executor shard.
// Label:
//   - worker_id: numeric shard index
var LedgerQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ledger_queue_depth",
		Help:      "Current number of jobs pending in each keyed executor shard.",
	},
	[]string{"worker_id"},
)
