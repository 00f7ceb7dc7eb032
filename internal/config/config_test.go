package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "livecheck.yaml")

	cfg := DefaultConfig()
	cfg.Liveness.HoldSeconds = 1.5
	cfg.Challenge.ChallengeTypes = []string{"blink", "open_mouth"}
	cfg.Challenge.TimeoutSeconds = 12
	cfg.Daemon.MaxSpoofs = 7

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.Liveness.HoldSeconds != 1.5 {
		t.Errorf("Expected hold 1.5, got %v", loaded.Liveness.HoldSeconds)
	}
	if len(loaded.Challenge.ChallengeTypes) != 2 || loaded.Challenge.ChallengeTypes[1] != "open_mouth" {
		t.Errorf("Unexpected challenge types %v", loaded.Challenge.ChallengeTypes)
	}
	if loaded.Challenge.TimeoutSeconds != 12 {
		t.Errorf("Expected timeout 12, got %v", loaded.Challenge.TimeoutSeconds)
	}
	if loaded.Daemon.MaxSpoofs != 7 {
		t.Errorf("Expected 7 spoofs, got %d", loaded.Daemon.MaxSpoofs)
	}
	if loaded.Liveness.SpoofVariance != 5e-8 {
		t.Errorf("Expected default spoof variance, got %v", loaded.Liveness.SpoofVariance)
	}
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livecheck.yaml")
	data := []byte("challenge:\n  turn_frames: 9\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Challenge.TurnFrames != 9 {
		t.Errorf("Expected 9 turn frames, got %d", cfg.Challenge.TurnFrames)
	}
	if cfg.Challenge.BlinkFrames != 2 {
		t.Errorf("Expected default blink frames to survive, got %d", cfg.Challenge.BlinkFrames)
	}
}

func TestLoadReplacesLists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livecheck.yaml")
	data := []byte("challenge:\n  challenge_types: [blink]\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if len(cfg.Challenge.ChallengeTypes) != 1 || cfg.Challenge.ChallengeTypes[0] != "blink" {
		t.Errorf("Expected [blink], got %v", cfg.Challenge.ChallengeTypes)
	}
	if cfg.Challenge.TurnFrames != 6 {
		t.Errorf("Expected default turn frames to survive, got %d", cfg.Challenge.TurnFrames)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for an explicit path that does not exist")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"DepthWindow", func(c *Config) { c.Liveness.DepthWindow = 1 }},
		{"StabilityWindow", func(c *Config) { c.Liveness.StabilityWindow = 0 }},
		{"NegativeHold", func(c *Config) { c.Liveness.HoldSeconds = -1 }},
		{"TurnOrder", func(c *Config) { c.Liveness.TurnLeftThreshold, c.Liveness.TurnRightThreshold = 0.8, 0.2 }},
		{"TurnRange", func(c *Config) { c.Liveness.TurnRightThreshold = 1.2 }},
		{"NoChallenges", func(c *Config) { c.Challenge.ChallengeTypes = nil }},
		{"UnknownChallenge", func(c *Config) { c.Challenge.ChallengeTypes = []string{"blink", "smile"} }},
		{"ZeroFrames", func(c *Config) { c.Challenge.TurnFrames = 0 }},
		{"NegativeTimeout", func(c *Config) { c.Challenge.TimeoutSeconds = -3 }},
		{"NegativePad", func(c *Config) { c.Capture.PadY = -0.1 }},
		{"Quality", func(c *Config) { c.Capture.JPEGQuality = 101 }},
		{"Sessions", func(c *Config) { c.Daemon.MaxSessions = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
