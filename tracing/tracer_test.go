package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracer_NilConfig(t *testing.T) {
	tp, err := NewTracer(nil, "nebulas", "1.0.0")

	assert.Nil(t, tp)
	assert.ErrorIs(t, err, ErrNilConfig)
}

func TestNewTracer_Disabled(t *testing.T) {
	tp, err := NewTracer(&Config{Enabled: false}, "", "")

	require.NoError(t, err)
	require.NotNil(t, tp)
	_ = tp.Shutdown(context.Background())
}

func TestNewTracer_EmptyServiceName(t *testing.T) {
	cfg := &Config{
		Enabled: true,
		OTLP:    &OTLPConfig{Endpoint: "localhost:4318"},
	}

	tp, err := NewTracer(cfg, "", "1.0.0")

	assert.Nil(t, tp)
	assert.ErrorIs(t, err, ErrEmptyServiceName)
}

func TestNewTracer_MissingEndpoint(t *testing.T) {
	for _, otlp := range []*OTLPConfig{nil, {Endpoint: ""}} {
		tp, err := NewTracer(&Config{Enabled: true, OTLP: otlp}, "nebulas", "1.0.0")

		assert.Nil(t, tp)
		assert.ErrorIs(t, err, ErrEmptyEndpoint)
	}
}

func TestNewTracer_Endpoints(t *testing.T) {
	endpoints := []string{
		"localhost:4318",
		"http://localhost:4318",
		"https://localhost:4318",
	}

	for _, endpoint := range endpoints {
		t.Run(endpoint, func(t *testing.T) {
			cfg := &Config{
				Enabled:      true,
				SamplingRate: 0.5,
				OTLP: &OTLPConfig{
					Endpoint: endpoint,
					Headers:  map[string]string{"Authorization": "Bearer token"},
				},
			}

			tp, err := NewTracer(cfg, "nebulas", "1.0.0")

			require.NoError(t, err)
			assert.NotNil(t, tp)
			_ = tp.Shutdown(context.Background())
		})
	}
}

func TestConfig_SamplingRate(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want float64
	}{
		{"negative", -0.5, 1.0},
		{"zero", 0, 1.0},
		{"greater than 1", 1.5, 1.0},
		{"valid", 0.1, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{SamplingRate: tt.rate}
			assert.Equal(t, tt.want, cfg.samplingRate())
		})
	}
}

func TestMustNewTracer(t *testing.T) {
	assert.Panics(t, func() {
		MustNewTracer(nil, "nebulas", "1.0.0")
	})

	assert.NotPanics(t, func() {
		tp := MustNewTracer(&Config{}, "nebulas", "1.0.0")
		_ = tp.Shutdown(context.Background())
	})
}
