package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/things/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/things/"+id, nil))
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues("/things/:id", "GET", "204")); got != 2 {
		t.Fatalf("requests = %v", got)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "geoattend_http_requests_total") {
		t.Fatalf("metrics output missing counter:\n%s", w.Body.String())
	}
}

func TestAttendanceAndEvents(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Attendance("check_in", "admitted")
	m.Attendance("check_in", "outside_geofence")
	m.Attendance("check_in", "admitted")
	m.Event("class.deleted", nil)
	m.Event("class.deleted", errors.New("down"))

	if got := testutil.ToFloat64(m.attendance.WithLabelValues("check_in", "admitted")); got != 2 {
		t.Fatalf("admitted = %v", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("class.deleted", "error")); got != 1 {
		t.Fatalf("event errors = %v", got)
	}
}
