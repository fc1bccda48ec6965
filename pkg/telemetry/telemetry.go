// Package telemetry holds the prometheus instruments for the orchestrator.
// Everything is registered on the default registry and served at /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	postsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thoughtpost_posts_created_total",
		Help: "Thought posts created.",
	})

	enrichResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thoughtpost_enrich_responses_total",
		Help: "Enrichment responses consumed, by agent-reported status.",
	}, []string{"status"})

	publishAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thoughtpost_publish_attempts_total",
		Help: "Per-platform publish attempts, by outcome.",
	}, []string{"platform", "outcome"})

	schedulerRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thoughtpost_scheduler_runs_total",
		Help: "Retry scheduler sweeps completed.",
	})

	schedulerExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thoughtpost_scheduler_exhausted_total",
		Help: "Posts moved to terminal FAILED after the retry ceiling.",
	})

	channelPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thoughtpost_channel_published_total",
		Help: "Messages published to the bus, by stream.",
	}, []string{"stream"})

	channelConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thoughtpost_channel_consumed_total",
		Help: "Messages delivered from the bus, by stream.",
	}, []string{"stream"})

	channelPoison = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thoughtpost_channel_poison_skipped_total",
		Help: "Messages dropped after exhausting handler retries, by stream.",
	}, []string{"stream"})

	searchPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "thoughtpost_search_pending",
		Help: "In-flight ad-hoc search correlations.",
	})
)

func PostCreated()                 { postsCreated.Inc() }
func EnrichResponse(status string) { enrichResponses.WithLabelValues(status).Inc() }

func PublishOK(platform string)     { publishAttempts.WithLabelValues(platform, "ok").Inc() }
func PublishFailed(platform string) { publishAttempts.WithLabelValues(platform, "failed").Inc() }

func SchedulerRun()       { schedulerRuns.Inc() }
func SchedulerExhausted() { schedulerExhausted.Inc() }

func ChannelPublished(stream string)     { channelPublished.WithLabelValues(stream).Inc() }
func ChannelConsumed(stream string)      { channelConsumed.WithLabelValues(stream).Inc() }
func ChannelPoisonSkipped(stream string) { channelPoison.WithLabelValues(stream).Inc() }

func SearchPendingSet(n int) { searchPending.Set(float64(n)) }
