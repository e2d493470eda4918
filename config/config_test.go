package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Pipeline.ArbiterRuns != 3 {
		t.Errorf("arbiter_runs = %d, want 3", cfg.Pipeline.ArbiterRuns)
	}
	if cfg.Pipeline.TopK != 25 {
		t.Errorf("top_k = %d, want 25", cfg.Pipeline.TopK)
	}
}

func TestLoadConfig_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geogate.yaml")
	body := `version: "1"
corpus: custom/rules.json
pipeline:
  arbiter_runs: 5
  call_timeout: 30s
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Corpus != "custom/rules.json" {
		t.Errorf("corpus = %q", cfg.Corpus)
	}
	if cfg.Pipeline.ArbiterRuns != 5 {
		t.Errorf("arbiter_runs = %d, want 5", cfg.Pipeline.ArbiterRuns)
	}
	if cfg.Pipeline.CallTimeout != 30*time.Second {
		t.Errorf("call_timeout = %v, want 30s", cfg.Pipeline.CallTimeout)
	}
	// Unset fields keep their defaults.
	if cfg.AuditDir != "audit" {
		t.Errorf("audit_dir = %q, want default", cfg.AuditDir)
	}
	if cfg.Pipeline.BatchWorkers != 4 {
		t.Errorf("batch_workers = %d, want default 4", cfg.Pipeline.BatchWorkers)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"empty corpus":          "version: \"1\"\ncorpus: \"\"\n",
		"negative arbiter runs": "version: \"1\"\npipeline:\n  arbiter_runs: -1\n",
		"not yaml":              "{{{{",
	}

	for name, body := range cases {
		path := filepath.Join(dir, name+".yaml")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfig(path); err == nil {
			t.Errorf("%s: LoadConfig should fail", name)
		}
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}
