package influxdb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gatekeeper-core/internal/infrastructure/config"
)

// testConfig matches the local dev InfluxDB in docker-compose.yml.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "gatekeeper-dev-token",
		Org:           "gatekeeper",
		Bucket:        "telemetry",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// connectOrSkip returns a live client or skips the test.
func connectOrSkip(t *testing.T) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	client, err := Connect(ctx, testConfig())
	if err != nil {
		t.Skipf("InfluxDB not available, skipping integration test: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := Connect(context.Background(), cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestBatchSettings(t *testing.T) {
	tests := []struct {
		name         string
		batch, flush int
		wantB, wantF int
	}{
		{"configured", 50, 2, 50, 2},
		{"zero", 0, 0, defaultBatchSize, defaultFlushInterval},
		{"negative", -1, -5, defaultBatchSize, defaultFlushInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.BatchSize = tt.batch
			cfg.FlushInterval = tt.flush

			b, f := batchSettings(cfg)
			if b != tt.wantB || f != tt.wantF {
				t.Errorf("batchSettings() = %d, %d, want %d, %d", b, f, tt.wantB, tt.wantF)
			}
		})
	}
}

func TestOperationPoint(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := operationPoint("create", "ok", 2500*time.Microsecond, 3, ts)

	if p.Name() != MeasurementOperations {
		t.Errorf("Name() = %q, want %q", p.Name(), MeasurementOperations)
	}
	if !p.Time().Equal(ts) {
		t.Errorf("Time() = %v, want %v", p.Time(), ts)
	}

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["operation"] != "create" || tags["outcome"] != "ok" || len(tags) != 2 {
		t.Errorf("tags = %v", tags)
	}

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if got, ok := fields["duration_ms"].(float64); !ok || got != 2.5 {
		t.Errorf("duration_ms = %v, want 2.5", fields["duration_ms"])
	}
	if got, ok := fields["observers"].(int64); !ok || got != 3 {
		t.Errorf("observers = %v (%T), want int64 3", fields["observers"], fields["observers"])
	}
}

func TestImportPoint(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := importPoint(40, 2, 1500*time.Millisecond, ts)

	if p.Name() != MeasurementImports {
		t.Errorf("Name() = %q, want %q", p.Name(), MeasurementImports)
	}
	if len(p.TagList()) != 0 {
		t.Errorf("TagList() = %v, want none", p.TagList())
	}

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if got, ok := fields["imported"].(int64); !ok || got != 40 {
		t.Errorf("imported = %v, want 40", fields["imported"])
	}
	if got, ok := fields["failed"].(int64); !ok || got != 2 {
		t.Errorf("failed = %v, want 2", fields["failed"])
	}
	if got, ok := fields["duration_ms"].(float64); !ok || got != 1500 {
		t.Errorf("duration_ms = %v, want 1500", fields["duration_ms"])
	}
}

func TestWriteOperation_Disconnected(t *testing.T) {
	c := &Client{}

	// Must not touch the nil write API.
	c.WriteOperation("get", "ok", time.Millisecond, 0)
	c.WriteImport(3, 1, time.Millisecond)
	c.Flush()

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

type fakeWriter struct {
	mu      sync.Mutex
	calls   []string
	obs     []int
	imports [][2]int
}

func (f *fakeWriter) WriteImport(imported, failed int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imports = append(f.imports, [2]int{imported, failed})
}

func (f *fakeWriter) WriteOperation(operation, outcome string, _ time.Duration, observers int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, operation+"/"+outcome)
	f.obs = append(f.obs, observers)
}

func TestRecorder(t *testing.T) {
	w := &fakeWriter{}
	count := 4
	r := NewRecorder(w, func() int { return count })

	r.RecordOperation("create", "ok", time.Millisecond)
	count = 5
	r.RecordOperation("delete", "not_found", time.Millisecond)

	if len(w.calls) != 2 || w.calls[0] != "create/ok" || w.calls[1] != "delete/not_found" {
		t.Errorf("calls = %v", w.calls)
	}
	if w.obs[0] != 4 || w.obs[1] != 5 {
		t.Errorf("observers = %v, want [4 5]", w.obs)
	}
}

func TestRecorder_RecordImport(t *testing.T) {
	w := &fakeWriter{}
	NewRecorder(w, nil).RecordImport(7, 1, time.Second)

	if len(w.imports) != 1 || w.imports[0] != [2]int{7, 1} {
		t.Errorf("imports = %v, want [[7 1]]", w.imports)
	}
}

func TestRecorder_NilObservers(t *testing.T) {
	w := &fakeWriter{}
	NewRecorder(w, nil).RecordOperation("list", "ok", time.Millisecond)

	if len(w.obs) != 1 || w.obs[0] != 0 {
		t.Errorf("observers = %v, want [0]", w.obs)
	}
}

func TestIntegration_WriteOperation(t *testing.T) {
	client := connectOrSkip(t)

	var mu sync.Mutex
	var writeErr error
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	client.WriteOperation("create", "ok", 2*time.Millisecond, 1)
	client.Flush()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		t.Errorf("async write error = %v", writeErr)
	}
}
