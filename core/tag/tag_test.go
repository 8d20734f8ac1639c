package tag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type retryConfig struct {
	Attempts  int           `default:"3"`
	BaseDelay time.Duration `default:"1s"`
}

type sampleConfig struct {
	URL      string   `default:"http://localhost:54321"`
	Tables   []string `default:"propiedades, oportunidades"`
	Ratio    float64  `default:"0.5"`
	Enabled  bool     `default:"true"`
	Port     uint16   `default:"8080"`
	Retry    retryConfig
	Fallback *retryConfig
	NoTag    string
	hidden   string
}

func TestApplyDefaults(t *testing.T) {
	var c sampleConfig
	require.NoError(t, ApplyDefaults(&c))

	assert.Equal(t, "http://localhost:54321", c.URL)
	assert.Equal(t, []string{"propiedades", "oportunidades"}, c.Tables)
	assert.InDelta(t, 0.5, c.Ratio, 1e-9)
	assert.True(t, c.Enabled)
	assert.Equal(t, uint16(8080), c.Port)
	assert.Equal(t, 3, c.Retry.Attempts)
	assert.Equal(t, time.Second, c.Retry.BaseDelay)
	require.NotNil(t, c.Fallback)
	assert.Equal(t, 3, c.Fallback.Attempts)
	assert.Empty(t, c.NoTag)
	assert.Empty(t, c.hidden)
}

func TestApplyDefaultsKeepsValues(t *testing.T) {
	c := sampleConfig{URL: "https://x.supabase.co", Retry: retryConfig{Attempts: 5}}
	require.NoError(t, ApplyDefaults(&c))

	assert.Equal(t, "https://x.supabase.co", c.URL)
	assert.Equal(t, 5, c.Retry.Attempts)
	assert.Equal(t, time.Second, c.Retry.BaseDelay)
}

func TestApplyDefaultsErrors(t *testing.T) {
	assert.ErrorIs(t, ApplyDefaults(sampleConfig{}), ErrNotStructPointer)
	assert.ErrorIs(t, ApplyDefaults((*sampleConfig)(nil)), ErrNotStructPointer)

	type bad struct {
		N int `default:"many"`
	}
	assert.Error(t, ApplyDefaults(&bad{}))

	type unsupported struct {
		M map[string]int `default:"a:1"`
	}
	assert.ErrorIs(t, ApplyDefaults(&unsupported{}), ErrUnsupportedType)
}
