// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinary_Toggle(t *testing.T) {
	t.Run("will make it unhealthy", func(t *testing.T) {
		t.Run("if the current state is healthy", func(t *testing.T) {
			var m Binary
			m.Toggle()
			assert.False(t, m.Healthy(context.Background()))
		})
	})

	t.Run("will make it healthy", func(t *testing.T) {
		t.Run("if the current state is unhealthy", func(t *testing.T) {
			var m Binary
			m.Set(false)
			m.Toggle()
			assert.True(t, m.Healthy(context.Background()))
		})
	})
}

type healthyMetric bool

func (m healthyMetric) Healthy(_ context.Context) bool {
	return bool(m)
}

func TestAndMetric_Healthy(t *testing.T) {
	testCases := []struct {
		Name    string
		Metrics []Metric
		Healthy bool
	}{
		{
			Name:    "will return true if there are no metrics",
			Healthy: true,
		},
		{
			Name:    "will return true if all metrics are healthy",
			Metrics: []Metric{healthyMetric(true), healthyMetric(true)},
			Healthy: true,
		},
		{
			Name:    "will return false if a single metric is unhealthy",
			Metrics: []Metric{healthyMetric(true), healthyMetric(false)},
			Healthy: false,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			am := And(testCase.Metrics...)
			assert.Equal(t, testCase.Healthy, am.Healthy(context.Background()))
		})
	}
}

type metricHandler struct {
	Metric
	http.Handler
}

func TestHandler(t *testing.T) {
	t.Run("will return the metric itself", func(t *testing.T) {
		t.Run("if it implements http.Handler", func(t *testing.T) {
			m := metricHandler{
				Metric: healthyMetric(true),
				Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusAccepted)
				}),
			}

			w := httptest.NewRecorder()
			Handler(m).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
			assert.Equal(t, http.StatusAccepted, w.Code)
		})
	})

	t.Run("will return 200", func(t *testing.T) {
		t.Run("if the metric is healthy", func(t *testing.T) {
			w := httptest.NewRecorder()
			Handler(healthyMetric(true)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		})
	})

	t.Run("will return 503", func(t *testing.T) {
		t.Run("if the metric is unhealthy", func(t *testing.T) {
			var b Binary
			b.Set(false)

			w := httptest.NewRecorder()
			Handler(&b).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		})
	})
}

func TestMetricFunc_Healthy(t *testing.T) {
	t.Run("will report what the func returns", func(t *testing.T) {
		ready := false
		m := MetricFunc(func(context.Context) bool { return ready })
		assert.False(t, m.Healthy(context.Background()))

		ready = true
		assert.True(t, m.Healthy(context.Background()))
	})
}
