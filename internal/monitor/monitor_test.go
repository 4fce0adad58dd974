package monitor

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDisabledServerIsNoop(t *testing.T) {
	s := NewMetricsServer(Config{Enable: false, Addr: ":0"}, zaptest.NewLogger(t))
	s.Run()
	require.NoError(t, s.Stop(context.Background()))

	s = NewMetricsServer(Config{Enable: true}, zaptest.NewLogger(t))
	s.Run()
	require.NoError(t, s.Stop(context.Background()))
}

func TestCollectorsRegistered(t *testing.T) {
	before := testutil.ToFloat64(TransfersSubmitted.WithLabelValues("ok"))
	TransfersSubmitted.WithLabelValues("ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(TransfersSubmitted.WithLabelValues("ok")))

	Phase.Set(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(Phase))
}
