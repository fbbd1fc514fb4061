package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func TestMetricsHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	metricsHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")

	rr = httptest.NewRecorder()
	metricsHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestInit_MetricsOnly(t *testing.T) {
	ctx := context.Background()
	shutdown, err := Init(ctx, Config{ServiceName: "bancolink-test", MetricsPort: "0"}, zap.NewNop())
	require.NoError(t, err)

	counter, err := otel.Meter("bancolink/test").Int64Counter("telemetry.test.counter")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	assert.NoError(t, shutdown(shutdownCtx))
}

func TestNewResource(t *testing.T) {
	res, err := newResource(context.Background(), Config{ServiceName: "bancolink", ServiceVersion: "1.2.3"})
	require.NoError(t, err)

	name, ok := res.Set().Value(attribute.Key("service.name"))
	require.True(t, ok)
	assert.Equal(t, "bancolink", name.AsString())

	version, ok := res.Set().Value(attribute.Key("service.version"))
	require.True(t, ok)
	assert.Equal(t, "1.2.3", version.AsString())

	_, ok = res.Set().Value(attribute.Key("telemetry.sdk.language"))
	assert.True(t, ok)
}
