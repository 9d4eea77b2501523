package bootstrap

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"caffmed-api/internal/config"
	"caffmed-api/internal/inference"
	"caffmed-api/internal/vision"
)

type shapeEngine struct {
	in, out int
}

func (e shapeEngine) Run(*vision.Tensor) (inference.RawPrediction, error) {
	return make(inference.RawPrediction, e.out), nil
}
func (e shapeEngine) InputSize() int  { return e.in }
func (e shapeEngine) OutputSize() int { return e.out }
func (e shapeEngine) Close() error    { return nil }

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestAssembleRejectsMismatchedModel(t *testing.T) {
	tests := []struct {
		name   string
		engine shapeEngine
		want   string
	}{
		{"class count", shapeEngine{in: 244, out: 3}, "class names"},
		{"input size", shapeEngine{in: 224, out: 4}, "input_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(t.Context(), loadConfig(t), zap.NewNop(), inference.NewReadyHandle(tt.engine))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Assemble() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestAssembleDefaults(t *testing.T) {
	cfg := loadConfig(t)
	a, err := Assemble(t.Context(), cfg, zap.NewNop(), inference.NewReadyHandle(shapeEngine{in: 244, out: 4}))
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	defer a.Close()

	if a.Predictor == nil || a.Auth == nil || a.History == nil {
		t.Fatalf("services not wired: %+v", a)
	}
	if a.History.Enabled() || a.Auth.Enabled() {
		t.Error("history and operator auth should be off by default")
	}
	if a.DB != nil || a.Redis != nil || a.MQConn != nil {
		t.Error("default config opened external connections")
	}
}

func TestAssembleUnavailableModel(t *testing.T) {
	a, err := Assemble(t.Context(), loadConfig(t), zap.NewNop(), inference.NewUnavailableHandle(errors.New("missing")))
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	defer a.Close()
	if a.Model.Ready() {
		t.Error("model reported ready")
	}
}

func TestAssembleHistoryOnSQLite(t *testing.T) {
	cfg := loadConfig(t)
	cfg.History.Enabled = true
	cfg.History.SQLitePath = filepath.Join(t.TempDir(), "db", "history.db")

	a, err := Assemble(t.Context(), cfg, zap.NewNop(), inference.NewUnavailableHandle(errors.New("missing")))
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	defer a.Close()
	if a.DB == nil || !a.History.Enabled() {
		t.Error("history store not wired")
	}
}

func TestAssembleAsyncHistoryNeedsBroker(t *testing.T) {
	cfg := loadConfig(t)
	cfg.History.Enabled = true
	cfg.History.Async = true
	cfg.History.SQLitePath = filepath.Join(t.TempDir(), "history.db")

	_, err := Assemble(t.Context(), cfg, zap.NewNop(), inference.NewUnavailableHandle(errors.New("missing")))
	if err == nil || !strings.Contains(err.Error(), "rabbitmq.url") {
		t.Errorf("Assemble() error = %v", err)
	}
}
