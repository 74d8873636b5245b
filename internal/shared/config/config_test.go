package config

import (
	"strings"
	"testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Simulation.DefaultGenerations != 5 {
		t.Errorf("DefaultGenerations = %d, want 5", cfg.Simulation.DefaultGenerations)
	}
	if cfg.Simulation.DefaultChildrenPerGeneration != 10 {
		t.Errorf("DefaultChildrenPerGeneration = %d, want 10", cfg.Simulation.DefaultChildrenPerGeneration)
	}
	if cfg.Simulation.MaxGridCells != 20_000_000 {
		t.Errorf("MaxGridCells = %d, want 20000000", cfg.Simulation.MaxGridCells)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SIMULATION_DEFAULT_GENERATIONS", "3")
	t.Setenv("SIMULATION_DEFAULT_SEED", "7")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("REDIS_CACHE_TTL_SECONDS", "60")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Simulation.DefaultGenerations != 3 || cfg.Simulation.DefaultSeed != 7 {
		t.Errorf("Simulation = %+v", cfg.Simulation)
	}
	if !cfg.Logging.JSONFormat {
		t.Error("Logging.JSONFormat = false, want true for LOG_FORMAT=json")
	}
	if cfg.Redis.CacheTTL.Seconds() != 60 {
		t.Errorf("Redis.CacheTTL = %v, want 60s", cfg.Redis.CacheTTL)
	}
}

func TestLoad_MalformedSeed(t *testing.T) {
	t.Setenv("SIMULATION_DEFAULT_SEED", "abc")
	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want error for malformed seed")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }, "JWT_SECRET is required"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "at least 32"},
		{"default above max", func(c *Config) { c.Simulation.MaxGenerations = 1 }, "SIMULATION_DEFAULT_GENERATIONS"},
		{"no workers", func(c *Config) { c.Simulation.MaxWorkers = 0 }, "SIMULATION_MAX_WORKERS"},
		{"negative grid budget", func(c *Config) { c.Simulation.MaxGridCells = -1 }, "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			cfg.Auth.JWTSecret = testSecret
			tt.mutate(cfg)

			err = cfg.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConnectionString(t *testing.T) {
	cfg, _ := Load()
	got := cfg.ConnectionString()
	for _, part := range []string{"host=localhost", "dbname=multiverse", "sslmode=disable"} {
		if !strings.Contains(got, part) {
			t.Errorf("ConnectionString() = %q, missing %q", got, part)
		}
	}
}
