package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cvsync/config"
	"github.com/c360/cvsync/health"
	"github.com/c360/cvsync/metric"
	"github.com/c360/cvsync/natsclient"
	"github.com/c360/cvsync/pkg/tlsutil"
	"github.com/c360/cvsync/report"
)

const snapshot = `ontology: psi-mi
database: psi-mi
pattern: '^MI:[0-9]{4}$'
terms:
  - accession: "MI:0000"
    short_label: molecular interaction
  - accession: "MI:0001"
    short_label: interaction detect
    parents: ["MI:0000"]
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "psi-mi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(snapshot), 0o600))

	cfg := config.Defaults()
	cfg.Store.Driver = config.DriverMemory
	cfg.Ontologies = []config.OntologyConfig{{ID: "MI", SnapshotPath: path, CacheSize: 16}}
	cfg.Update.ImportNewTerms = true
	require.NoError(t, cfg.Validate())
	return cfg
}

func testApp(t *testing.T, cfg *config.Config, cli *CLIConfig) *app {
	t.Helper()
	a, err := newApp(context.Background(), cfg, cli, newLogger(&bytes.Buffer{}, "error", "json"),
		metric.NewMetricsRegistry(), health.NewMonitor())
	require.NoError(t, err)
	t.Cleanup(func() { a.close(context.Background()) })
	return a
}

func TestApp_RunOnceWritesReport(t *testing.T) {
	cfg := testConfig(t)
	out := filepath.Join(t.TempDir(), "run.json")
	a := testApp(t, cfg, &CLIConfig{ReportFormat: "json", ReportPath: out})

	rep, err := a.runOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rep)

	section := rep.Ontology("MI")
	require.NotNil(t, section)
	assert.False(t, section.Aborted)
	assert.Positive(t, section.Processed)
	assert.NotEmpty(t, section.RunID)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	parsed, err := report.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, rep.ID, parsed.ID)
}

func TestApp_RunUpdatesHealth(t *testing.T) {
	a := testApp(t, testConfig(t), &CLIConfig{ReportFormat: "json", ReportPath: filepath.Join(t.TempDir(), "r.json")})
	_, err := a.runOnce(context.Background())
	require.NoError(t, err)

	store, ok := a.health.Get("store")
	require.True(t, ok)
	assert.True(t, store.IsHealthy())
	mi, ok := a.health.Get("ontology/MI")
	require.True(t, ok)
	assert.False(t, mi.IsUnhealthy())
}

func TestApp_SecondRunIsStable(t *testing.T) {
	cfg := testConfig(t)
	a := testApp(t, cfg, &CLIConfig{ReportFormat: "yaml", ReportPath: filepath.Join(t.TempDir(), "r.yaml")})

	first, err := a.runOnce(context.Background())
	require.NoError(t, err)
	second, err := a.runOnce(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Zero(t, second.Ontology("MI").TermsCreated, "terms imported by the first run")
}

func TestApp_OverlappingRunSkipped(t *testing.T) {
	a := testApp(t, testConfig(t), &CLIConfig{ReportFormat: "json", ReportPath: filepath.Join(t.TempDir(), "r.json")})

	a.runMu.Lock()
	defer a.runMu.Unlock()
	rep, err := a.runOnce(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, rep)
}

func TestApp_OntologySelection(t *testing.T) {
	cfg := testConfig(t)
	a := testApp(t, cfg, &CLIConfig{ReportFormat: "json", Ontologies: "GO", ReportPath: filepath.Join(t.TempDir(), "r.json")})
	assert.Equal(t, []string{"GO"}, a.ontologies)

	_, err := a.runOnce(context.Background())
	assert.Error(t, err, "unknown ontology")
}

func TestNewApp_BadSnapshot(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ontologies[0].SnapshotPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := newApp(context.Background(), cfg, &CLIConfig{ReportFormat: "json"},
		newLogger(&bytes.Buffer{}, "error", "json"), metric.NewMetricsRegistry(), health.NewMonitor())
	assert.Error(t, err)
}

func TestNewApp_RegistersNamespace(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ontologies[0].Namespace = "MI"
	cfg.Ontologies[0].Database = "psi-mi"
	cfg.Ontologies[0].DatabaseAC = "MI:0488"
	a := testApp(t, cfg, &CLIConfig{ReportFormat: "json"})

	db, ok := a.vocab.DatabaseForNamespace("MI")
	require.True(t, ok)
	assert.Equal(t, "MI", db.OntologyID)
	assert.Equal(t, "MI:0488", db.Accession)
}

func TestApp_NATSOptions(t *testing.T) {
	a := &app{logger: newLogger(&bytes.Buffer{}, "error", "json"), metrics: metric.NewMetricsRegistry(), health: health.NewMonitor()}
	nc := config.Defaults().NATS

	opts, err := a.natsOptions(nc)
	require.NoError(t, err)
	client, err := natsclient.NewClient("nats://localhost:4222", opts...)
	require.NoError(t, err)
	assert.Equal(t, natsclient.StatusDisconnected, client.Status())

	nc.Username, nc.Password, nc.Token = "u", "p", "t"
	withAuth, err := a.natsOptions(nc)
	require.NoError(t, err)
	assert.Len(t, withAuth, len(opts)+2)

	nc.TLS = tlsutil.ClientConfig{Enabled: true, CAFiles: []string{filepath.Join(t.TempDir(), "missing-ca.pem")}}
	_, err = a.natsOptions(nc)
	assert.Error(t, err)
}

func TestNewApp_UnreachableNATS(t *testing.T) {
	cfg := testConfig(t)
	cfg.NATS.Enabled = true
	cfg.NATS.URLs = []string{"nats://127.0.0.1:1"}
	cfg.NATS.ConnectTimeout = 100 * time.Millisecond
	cfg.NATS.ConnectRetry = config.RetryConfig{MaxAttempts: 1}
	monitor := health.NewMonitor()

	_, err := newApp(context.Background(), cfg, &CLIConfig{ReportFormat: "json"},
		newLogger(&bytes.Buffer{}, "error", "json"), metric.NewMetricsRegistry(), monitor)
	require.Error(t, err)
	status, ok := monitor.Get("nats")
	require.True(t, ok)
	assert.True(t, status.IsUnhealthy())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "ontology", "MI")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, appName, line["service"])
	assert.Equal(t, Version, line["version"])
}

func TestMetricName(t *testing.T) {
	assert.Equal(t, "psi_mi", metricName("PSI-MI"))
	assert.Equal(t, "go", metricName("GO"))
}
