package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.RefreshDone("embedded")
	m.RefreshDone("embedded")
	m.RefreshDone("failed")
	m.GraphMutation("add_link")
	m.ObserveSearch("text", time.Millisecond, nil)
	m.ObserveSearch("note", time.Millisecond, errors.New("boom"))

	body := scrape(t, m)
	assert.Contains(t, body, `ansuz_embedding_refreshes_total{status="embedded"} 2`)
	assert.Contains(t, body, `ansuz_embedding_refreshes_total{status="failed"} 1`)
	assert.Contains(t, body, `ansuz_graph_mutations_total{op="add_link"} 1`)
	assert.Contains(t, body, `ansuz_search_requests_total{mode="note",status="error"} 1`)
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RefreshDone("embedded")
		m.ObserveEmbed(time.Second)
		m.SetQueueDepth(3)
		m.ObserveSearch("text", time.Second, nil)
		m.GraphMutation("create")
	})
	assert.Nil(t, m.Registry())
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.SetQueueDepth(4)

	assert.Contains(t, scrape(t, m), "ansuz_embedding_queue_depth 4")
}
