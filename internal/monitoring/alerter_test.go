package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dispatch-cli/internal/config"
)

func baseConfig() config.MonitoringConfig {
	return config.MonitoringConfig{
		FailureRateThreshold: 0.2,
		IssueRateThreshold:   0.5,
		LookbackWindowHours:  24,
	}
}

func TestEvaluate_NoAlertsWhenHealthy(t *testing.T) {
	t.Parallel()

	a := NewAlerter(baseConfig())
	snap := &MetricsSnapshot{
		IngestComplete: 10,
		IngestFailed:   1,
		IngestFailRate: 0.09,
		OrdersParsed:   100,
		IssuesFound:    10,
		IssuesPerOrder: 0.1,
		LookbackHours:  24,
	}

	assert.Empty(t, a.Evaluate(snap))
}

func TestEvaluate_FailureRate(t *testing.T) {
	t.Parallel()

	a := NewAlerter(baseConfig())
	snap := &MetricsSnapshot{
		IngestComplete: 4,
		IngestFailed:   3,
		IngestFailRate: 3.0 / 7.0,
		LookbackHours:  24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertIngestFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
}

func TestEvaluate_FailureRateNeedsEnoughSamples(t *testing.T) {
	t.Parallel()

	a := NewAlerter(baseConfig())
	// 1 of 2 failed is a 50% rate but too few finished ingests to alert on.
	snap := &MetricsSnapshot{
		IngestComplete: 1,
		IngestFailed:   1,
		IngestFailRate: 0.5,
	}

	assert.Empty(t, a.Evaluate(snap))
}

func TestEvaluate_IssueSpike(t *testing.T) {
	t.Parallel()

	a := NewAlerter(baseConfig())
	snap := &MetricsSnapshot{
		IngestComplete: 5,
		OrdersParsed:   50,
		IssuesFound:    40,
		IssuesPerOrder: 0.8,
		LookbackHours:  24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertIssueSpike, alerts[0].Type)
}

func TestSendAlerts_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var received []Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var a Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&a))
		received = append(received, a)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := baseConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertIngestFailureRate, Severity: "high", Message: "x"},
		{Type: AlertIssueSpike, Severity: "medium", Message: "y"},
	})

	assert.Equal(t, 2, sent)
	require.Len(t, received, 2)
	assert.Equal(t, AlertIngestFailureRate, received[0].Type)
}

func TestSendAlerts_NoWebhookConfigured(t *testing.T) {
	t.Parallel()

	a := NewAlerter(baseConfig())
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertIssueSpike}})
	assert.Zero(t, sent)
}

func TestSendAlerts_CountsOnlySuccesses(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := baseConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertIssueSpike}})
	assert.Zero(t, sent)
}
