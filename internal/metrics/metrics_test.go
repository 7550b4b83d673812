package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitions(t *testing.T) {
	before := testutil.ToFloat64(transitions.WithLabelValues("wanted", "scraping"))
	IncTransition("wanted", "scraping")
	IncTransition("wanted", "scraping")
	assert.Equal(t, before+2, testutil.ToFloat64(transitions.WithLabelValues("wanted", "scraping")))
}

func TestObserveTask(t *testing.T) {
	ObserveTask("wanted", 10*time.Millisecond, nil)
	ObserveTask("wanted", 10*time.Millisecond, errors.New("boom"))
	assert.GreaterOrEqual(t, testutil.ToFloat64(taskRuns.WithLabelValues("wanted", "ok")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(taskRuns.WithLabelValues("wanted", "error")), 1.0)
}

func TestGauges(t *testing.T) {
	SetItems("collected", 12)
	assert.Equal(t, 12.0, testutil.ToFloat64(items.WithLabelValues("collected")))

	SetPaused(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(paused))
	SetPaused(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(paused))
}

func TestHandler(t *testing.T) {
	IncUpgrade("succeeded")
	IncDebridRequest("addMagnet", "ok")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "reelq_upgrades_total")
	assert.Contains(t, body, "reelq_debrid_requests_total")

	Register() // idempotent
}
