package constants

import "time"

const (
	ServiceName = "filter-service"
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixDelivery = "notifilter:delivered:"
	DefaultTTLSeconds      = 3600
)

const (
	DefaultInputTopic  = "normalized_events"
	DefaultOutputTopic = "filtered_events"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultRuleReloadInterval = 60 * time.Second
	RuleFileDebounce          = 250 * time.Millisecond
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderChangedBy = "X-Changed-By"
)
