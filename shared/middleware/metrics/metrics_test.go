package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware("test"))
	r.Delete("/api/temp/{filename}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, name := range []string{"a.mp4", "b.mp4"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/temp/"+name, nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	}

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("test", http.MethodDelete, "/api/temp/{filename}", "404"))
	assert.Equal(t, float64(2), got)
}
