package config

import "testing"

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_TauRange(t *testing.T) {
	tests := []struct {
		name    string
		tau     float64
		wantErr bool
	}{
		{"zero", 0, true}, // zero is replaced by defaults before Validate; raw zero never reaches here
		{"valid low", 0.05, false},
		{"valid boundary one", 1, false},
		{"negative", -0.1, true},
		{"above one", 1.1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Pipeline.Tau = tt.tau
			if tt.name == "zero" {
				// ApplyDefaults maps 0 to the default threshold
				cfg.ApplyDefaults()
				if cfg.Pipeline.Tau != 0.3 {
					t.Fatalf("expected default tau 0.3, got %g", cfg.Pipeline.Tau)
				}
				return
			}
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected error for tau=%g", tt.tau)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error for tau=%g: %v", tt.tau, err)
			}
		})
	}
}

func TestValidate_TopKCapped(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.TopK = 100
	cfg.Pipeline.MaxTopK = 50

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for top_k above max_top_k")
	}
}

func TestValidate_InvalidBudgetAction(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Budget.Action = "explode"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid budget action")
	}

	expected := `embedding.budget.action must be "warn" or "reject", got "explode"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidBudgetActions(t *testing.T) {
	for _, action := range []string{"", "warn", "reject"} {
		t.Run("action="+action, func(t *testing.T) {
			cfg := validConfig()
			cfg.Embedding.Budget.Action = action
			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid action %q: %v", action, err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()

	if cfg.Pipeline.TopK != 5 {
		t.Errorf("expected default top_k 5, got %d", cfg.Pipeline.TopK)
	}
	if cfg.Pipeline.MaxTopK != 50 {
		t.Errorf("expected default max_top_k 50, got %d", cfg.Pipeline.MaxTopK)
	}
	if cfg.Embedding.Retry.MaxAttempts != 3 {
		t.Errorf("expected default max_attempts 3, got %d", cfg.Embedding.Retry.MaxAttempts)
	}
	if cfg.Pipeline.Admission.Embedder.Capacity != 10 {
		t.Errorf("expected default embedder bucket capacity 10, got %d", cfg.Pipeline.Admission.Embedder.Capacity)
	}
}

func TestIndexVersion(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Model = "text-embedding-3-small"
	cfg.Embedding.Dimensions = 1536
	cfg.Pipeline.CorpusVersion = "v2"

	got := cfg.IndexVersion()
	want := "text-embedding-3-small:1536:v2"
	if got != want {
		t.Errorf("IndexVersion() = %q, want %q", got, want)
	}
}
