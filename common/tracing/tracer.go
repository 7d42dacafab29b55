package tracing

import (
	"os"
	"strconv"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go/config"
)

const (
	defaultSampleRatio float64 = 0.01

	// SampleRatioEnv overrides the fraction of traces that are sampled.
	SampleRatioEnv = "JAEGER_SAMPLE_RATIO"
)

// Init returns a newly configured tracer that reports to the Jaeger agent at host.
func Init(serviceName string, host string) (opentracing.Tracer, error) {
	ratio := defaultSampleRatio
	if val, ok := os.LookupEnv(SampleRatioEnv); ok {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil && parsed >= 0 && parsed <= 1 {
			ratio = parsed
		}
	}

	cfg := config.Configuration{
		ServiceName: serviceName,
		Sampler: &config.SamplerConfig{
			Type:  "probabilistic",
			Param: ratio,
		},
		Reporter: &config.ReporterConfig{
			LogSpans:            false,
			BufferFlushInterval: 1 * time.Second,
			LocalAgentHostPort:  host,
		},
	}

	tracer, _, err := cfg.NewTracer()
	if err != nil {
		return nil, err
	}
	return tracer, nil
}
