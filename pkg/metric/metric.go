package metric

import (
	"sync"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rs/zerolog/log"
)

const (
	ApiRequestCount      = "api_request_count"
	ApiRequestLatency    = "api_request_latency"
	PredictionCount      = "prediction_count"
	InferenceLatency     = "inference_latency"
	SaliencyFallback     = "saliency_fallback_count"
	AnalysisLatency      = "analysis_latency"
	PresentationOverride = "presentation_override_count"
)

var (
	// statsd.ClientInterface is safe for concurrent use
	client       statsd.ClientInterface = &statsd.NoOpClient{}
	samplingRate                        = 1.0
	appName                             = ""
	once         sync.Once
)

// Init connects the statsd client. Until Init is called metrics are
// dropped.
func Init(address, name, env string, rate float64) {
	once.Do(func() {
		appName = name
		if rate > 0 {
			samplingRate = rate
		}
		c, err := statsd.New(address, statsd.WithTags([]string{
			TagAsString(TagEnv, env),
			TagAsString(TagService, name),
		}))
		if err != nil {
			log.Error().Err(err).Msg("StatsD client initialization failed, metrics disabled")
			return
		}
		client = c
		log.Info().Msgf("Metrics client initialized with address - %s, sampling rate - %f", address, samplingRate)
	})
}

// SetClient replaces the client, e.g. with a recorder in tests.
func SetClient(c statsd.ClientInterface) {
	client = c
}

func Timing(name string, value time.Duration, tags []string) {
	tags = append(tags, TagAsString(TagService, appName))
	if err := client.Timing(name, value, tags, samplingRate); err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd timing")
	}
}

func Count(name string, value int64, tags []string) {
	tags = append(tags, TagAsString(TagService, appName))
	if err := client.Count(name, value, tags, samplingRate); err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd count")
	}
}

func Incr(name string, tags []string) {
	Count(name, 1, tags)
}

func Gauge(name string, value float64, tags []string) {
	tags = append(tags, TagAsString(TagService, appName))
	if err := client.Gauge(name, value, tags, samplingRate); err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd gauge")
	}
}
