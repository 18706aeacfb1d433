package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/nostrauth/core"
	"github.com/layer-3/nostrauth/ports"
)

var _ ports.MetricsRecorder = (*PrometheusRecorder)(nil)

func TestRecordOutcome(t *testing.T) {
	r := NewPrometheusRecorder()

	r.RecordOutcome(core.StateSessionIssued)
	r.RecordOutcome(core.StateSessionIssued)
	r.RecordOutcome(core.StateSignatureInvalid)
	r.RecordOutcome(core.StateChallengeConsumeFailed)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.outcomes.WithLabelValues("session_issued", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.outcomes.WithLabelValues("signature_invalid", "4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.outcomes.WithLabelValues("challenge_consume_failed", "5xx")))
}

func TestHandler(t *testing.T) {
	r := NewPrometheusRecorder()
	r.RecordOutcome(core.StateRateLimitedByCaller)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `nostrauth_auth_outcomes_total{state="rate_limited_by_caller",status="4xx"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
