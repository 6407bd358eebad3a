//go:build integration

package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cvsync/health"
	"github.com/c360/cvsync/metric"
	"github.com/c360/cvsync/natsclient"
)

func TestIntegration_NewAppClosesNATSWhenStreamSetupFails(t *testing.T) {
	// JetStream disabled, so EnsureStream fails after a successful connect.
	tc := natsclient.NewTestClient(t)

	cfg := testConfig(t)
	cfg.NATS.Enabled = true
	cfg.NATS.URLs = []string{tc.URL}
	cfg.NATS.ConnectRetry.MaxAttempts = 1
	cfg.NATS.DrainTimeout = time.Second

	monitor := health.NewMonitor()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := newApp(ctx, cfg, &CLIConfig{ReportFormat: "json", ReportPath: "-"},
		newLogger(&bytes.Buffer{}, "error", "json"), metric.NewMetricsRegistry(), monitor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensure event stream")

	status, ok := monitor.Get("nats")
	require.True(t, ok)
	assert.True(t, status.IsUnhealthy(), "client closed after the failed setup, got %+v", status)
}

func TestIntegration_RunOnceArchivesReport(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithJetStream())

	cfg := testConfig(t)
	cfg.NATS.Enabled = true
	cfg.NATS.URLs = []string{tc.URL}
	cfg.NATS.ClientName = "cvupdate-it"

	a := testApp(t, cfg, &CLIConfig{ReportFormat: "json", ReportPath: "-"})
	require.NotNil(t, a.archive)

	rep, err := a.runOnce(context.Background())
	require.NoError(t, err)

	stored, err := a.archive.Load(context.Background(), rep.ID)
	require.NoError(t, err)
	assert.Equal(t, rep.ID, stored.ID)
	assert.Greater(t, a.publisher.Published(), int64(0))
}
