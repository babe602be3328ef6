package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Providers.Default != "openrouter" {
		t.Errorf("default provider = %q", cfg.Providers.Default)
	}
	def, ok := cfg.Providers.Clients[cfg.Providers.Default]
	if !ok {
		t.Fatal("default provider not in clients map")
	}
	if !def.Enabled {
		t.Error("default provider disabled")
	}
	if cfg.Render.DPI != 300 {
		t.Errorf("dpi = %d", cfg.Render.DPI)
	}
	if cfg.Enhance.CheckboxThreshold != 180 || cfg.Enhance.RadioThreshold != 200 {
		t.Errorf("thresholds = %d/%d", cfg.Enhance.CheckboxThreshold, cfg.Enhance.RadioThreshold)
	}
	if cfg.Vision.Workers != 3 {
		t.Errorf("vision workers = %d", cfg.Vision.Workers)
	}
	if len(cfg.Vision.Variants) == 0 {
		t.Error("no default variants")
	}
	if cfg.Reconcile.FormBase+cfg.Reconcile.VisionBase != 1.0 {
		t.Errorf("source bases = %v + %v, want sum 1.0",
			cfg.Reconcile.FormBase, cfg.Reconcile.VisionBase)
	}
	if cfg.Reconcile.ReviewThreshold != 0.7 {
		t.Errorf("review threshold = %v", cfg.Reconcile.ReviewThreshold)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("FORMSCAN_TEST_KEY", "sk-12345")

	tests := []struct {
		in   string
		want string
	}{
		{"${FORMSCAN_TEST_KEY}", "sk-12345"},
		{"prefix-${FORMSCAN_TEST_KEY}", "prefix-sk-12345"},
		{"literal-key", "literal-key"},
		{"${FORMSCAN_UNSET_VAR_XYZ}", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ResolveEnvVars(tt.in); got != tt.want {
			t.Errorf("ResolveEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "# formscan configuration") {
		t.Error("missing header comment")
	}
	for _, want := range []string{"providers:", "enhance:", "reconcile:", "${OPENROUTER_API_KEY}"} {
		if !strings.Contains(content, want) {
			t.Errorf("default config missing %q", want)
		}
	}
}
