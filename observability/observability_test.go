package observability

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/config"
)

func TestMetricsOnCompleteRecordsSuccessAndError(t *testing.T) {
	m := NewMetrics("quoracle_test")
	onComplete := m.OnComplete()

	onComplete(action.KindFetchWeb, 10*time.Millisecond, nil)
	onComplete(action.KindFetchWeb, 20*time.Millisecond, errors.New("boom"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "quoracle_test_dispatch_actions_total")
	require.Contains(t, body, "quoracle_test_dispatch_action_errors_total")
	require.Contains(t, body, `kind="fetch_web"`)
}

func TestNewTracerDisabledReturnsNoop(t *testing.T) {
	tr, err := NewTracer(context.Background(), config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, tr.Tracer("quoracle"))
	require.NoError(t, tr.Shutdown(context.Background()))
}

func TestNewTracerStdoutExporter(t *testing.T) {
	tr, err := NewTracer(context.Background(), config.TracingConfig{
		Enabled:        true,
		Exporter:       "stdout",
		SamplingRate:   1.0,
		ServiceName:    "quoracle-test",
		ServiceVersion: "test",
	})
	require.NoError(t, err)
	require.NotNil(t, tr.Tracer("quoracle"))
	require.NoError(t, tr.Shutdown(context.Background()))
}

func TestNewTracerRejectsUnknownExporter(t *testing.T) {
	_, err := NewTracer(context.Background(), config.TracingConfig{
		Enabled:  true,
		Exporter: "jaeger",
	})
	require.Error(t, err)
}
