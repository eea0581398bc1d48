package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndHandler(t *testing.T) {
	before := testutil.ToFloat64(ExpansionFailures)
	ExpansionFailures.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ExpansionFailures))

	ChunksReviewed.WithLabelValues(VerdictFailed).Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "aipatent_expansion_failures_total")
	assert.Contains(t, rec.Body.String(), `aipatent_chunks_reviewed_total{verdict="failed"}`)
}
