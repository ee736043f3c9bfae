package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "yesshare", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "yesshare", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	PagesPublished = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "yesshare", Name: "pages_published_total", Help: "Number of pages published."},
	)
	PublishConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "yesshare", Name: "publish_conflicts_total", Help: "Publish attempts that found the slug taken at write time."},
	)
	SlugChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "yesshare", Name: "slug_checks_total", Help: "Slug availability checks by result."},
		[]string{"result"},
	)
	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: "yesshare", Name: "search_duration_seconds", Help: "Full-scan search latency.", Buckets: prometheus.DefBuckets},
	)
	ChannelMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "yesshare", Name: "channel_messages_total", Help: "Frame channel messages by type and outcome."},
		[]string{"type", "outcome"},
	)
	CommentsAdded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "yesshare", Name: "comments_added_total", Help: "Comments appended by source (form or frame)."},
		[]string{"source"},
	)
	AvatarIngest = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "yesshare", Name: "avatar_ingest_total", Help: "Avatar ingestion outcomes."},
		[]string{"outcome"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(PagesPublished)
	reg.MustRegister(PublishConflicts)
	reg.MustRegister(SlugChecks)
	reg.MustRegister(SearchDuration)
	reg.MustRegister(ChannelMessages)
	reg.MustRegister(CommentsAdded)
	reg.MustRegister(AvatarIngest)
}
