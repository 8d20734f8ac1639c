package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGathersDomainMetrics(t *testing.T) {
	p := New()
	CacheLookups.WithLabelValues("test", "hit").Inc()
	HeartbeatTicks.WithLabelValues("ok").Inc()

	families, err := p.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "rentoso_cache_lookups_total")
	assert.Contains(t, names, "rentoso_session_heartbeat_ticks_total")
	assert.GreaterOrEqual(t, testutil.ToFloat64(CacheLookups.WithLabelValues("test", "hit")), 1.0)
}

func TestOptionalCollectors(t *testing.T) {
	p := New()
	p.WithBuildInfoCollector()
	p.WithGoCollectorRuntimeMetrics()
	families, err := p.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
