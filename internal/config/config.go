// Package config provides configuration management for LiveCheck
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Landmark service settings
	Inference InferenceConfig `mapstructure:"inference" yaml:"inference"`

	// Liveness signal and gate settings
	Liveness LivenessConfig `mapstructure:"liveness" yaml:"liveness"`

	// Challenge-response settings
	Challenge ChallengeConfig `mapstructure:"challenge" yaml:"challenge"`

	// Final face capture settings
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`

	// Daemon settings
	Daemon DaemonConfig `mapstructure:"daemon" yaml:"daemon"`

	// Storage settings
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Logging settings
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// InferenceConfig holds landmark service configuration
type InferenceConfig struct {
	Address string `mapstructure:"address" yaml:"address"` // gRPC service address (e.g., localhost:50052)
	Timeout int    `mapstructure:"timeout" yaml:"timeout"` // Request timeout in seconds
}

// LivenessConfig holds spoof detection and stability gate configuration
type LivenessConfig struct {
	DepthWindow        int     `mapstructure:"depth_window" yaml:"depth_window"`                 // Depth samples kept for spoof analysis
	SpoofVariance      float64 `mapstructure:"spoof_variance" yaml:"spoof_variance"`             // Depth variance at or below this is a spoof
	StabilityWindow    int     `mapstructure:"stability_window" yaml:"stability_window"`         // Nose positions kept for the stability check
	StabilityMaxStd    float64 `mapstructure:"stability_max_std" yaml:"stability_max_std"`       // Max positional std to count as stable
	HoldSeconds        float64 `mapstructure:"hold_seconds" yaml:"hold_seconds"`                 // Continuous hold before challenges start
	MouthClosedMax     float64 `mapstructure:"mouth_closed_max" yaml:"mouth_closed_max"`         // Mouth ratio below which the mouth is closed
	TurnLeftThreshold  float64 `mapstructure:"turn_left_threshold" yaml:"turn_left_threshold"`   // Relative nose position below this is LEFT
	TurnRightThreshold float64 `mapstructure:"turn_right_threshold" yaml:"turn_right_threshold"` // Relative nose position above this is RIGHT
}

// ChallengeConfig holds challenge-response configuration
type ChallengeConfig struct {
	ChallengeTypes  []string `mapstructure:"challenge_types" yaml:"challenge_types"`     // Types: "blink", "turn_left", "turn_right", "open_mouth"
	BlinkThreshold  float64  `mapstructure:"blink_threshold" yaml:"blink_threshold"`     // Mean EAR below this counts as closed eyes
	BlinkFrames     int      `mapstructure:"blink_frames" yaml:"blink_frames"`           // Consecutive frames required for a blink
	MouthOpenMin    float64  `mapstructure:"mouth_open_min" yaml:"mouth_open_min"`       // Mouth ratio above this counts as open
	MouthOpenFrames int      `mapstructure:"mouth_open_frames" yaml:"mouth_open_frames"` // Consecutive frames required for open mouth
	TurnFrames      int      `mapstructure:"turn_frames" yaml:"turn_frames"`             // Consecutive frames required for a head turn
	TimeoutSeconds  float64  `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`     // Per-challenge timeout, 0 disables
}

// CaptureConfig holds face crop configuration
type CaptureConfig struct {
	PadX        float64 `mapstructure:"pad_x" yaml:"pad_x"`               // Horizontal padding as a fraction of box width
	PadY        float64 `mapstructure:"pad_y" yaml:"pad_y"`               // Vertical padding as a fraction of box height
	JPEGQuality int     `mapstructure:"jpeg_quality" yaml:"jpeg_quality"` // Artifact JPEG quality
}

// DaemonConfig holds socket daemon configuration
type DaemonConfig struct {
	SocketPath      string `mapstructure:"socket_path" yaml:"socket_path"`           // Unix socket path
	MaxSessions     int    `mapstructure:"max_sessions" yaml:"max_sessions"`         // Maximum concurrent sessions
	MaxSpoofs       int    `mapstructure:"max_spoofs" yaml:"max_spoofs"`             // Spoof failures before lockout
	LockoutDuration int    `mapstructure:"lockout_duration" yaml:"lockout_duration"` // Lockout duration in seconds
}

// StorageConfig holds data storage configuration
type StorageConfig struct {
	DataDir       string `mapstructure:"data_dir" yaml:"data_dir"`             // Directory for captured faces
	DatabasePath  string `mapstructure:"database_path" yaml:"database_path"`   // SQLite database path
	SaveArtifacts bool   `mapstructure:"save_artifacts" yaml:"save_artifacts"` // Write captured faces to disk
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"` // Log level: debug, info, warn, error
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Inference: InferenceConfig{
			Address: "localhost:50052",
			Timeout: 10,
		},
		Liveness: LivenessConfig{
			DepthWindow:        50,
			SpoofVariance:      5e-8,
			StabilityWindow:    15,
			StabilityMaxStd:    0.006,
			HoldSeconds:        2.0,
			MouthClosedMax:     0.2,
			TurnLeftThreshold:  0.25,
			TurnRightThreshold: 0.75,
		},
		Challenge: ChallengeConfig{
			ChallengeTypes:  []string{"blink", "turn_left", "turn_right", "open_mouth"},
			BlinkThreshold:  0.18,
			BlinkFrames:     2,
			MouthOpenMin:    0.5,
			MouthOpenFrames: 5,
			TurnFrames:      6,
			TimeoutSeconds:  0,
		},
		Capture: CaptureConfig{
			PadX:        0.25,
			PadY:        0.35,
			JPEGQuality: 92,
		},
		Daemon: DaemonConfig{
			SocketPath:      "/var/run/livecheck/livecheck.sock",
			MaxSessions:     16,
			MaxSpoofs:       3,
			LockoutDuration: 300,
		},
		Storage: StorageConfig{
			DataDir:       "/var/lib/livecheck",
			DatabasePath:  "/var/lib/livecheck/livecheck.db",
			SaveArtifacts: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("livecheck")
		v.AddConfigPath("/etc/livecheck/")
		v.AddConfigPath("$HOME/.livecheck")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("LIVECHECK")
	v.AutomaticEnv()

	// Config file not found is OK, use defaults
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	// Lists from the file replace the defaults instead of overlaying them
	zeroFields := viper.DecoderConfigOption(func(dc *mapstructure.DecoderConfig) {
		dc.ZeroFields = true
	})
	if err := v.Unmarshal(cfg, zeroFields); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	v := viper.New()

	v.Set("inference", c.Inference)
	v.Set("liveness", c.Liveness)
	v.Set("challenge", c.Challenge)
	v.Set("capture", c.Capture)
	v.Set("daemon", c.Daemon)
	v.Set("storage", c.Storage)
	v.Set("logging", c.Logging)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	l := c.Liveness
	if l.DepthWindow < 2 {
		return fmt.Errorf("depth window must be at least 2, got %d", l.DepthWindow)
	}
	if l.StabilityWindow < 2 {
		return fmt.Errorf("stability window must be at least 2, got %d", l.StabilityWindow)
	}
	if l.HoldSeconds < 0 {
		return fmt.Errorf("hold seconds cannot be negative")
	}
	if l.TurnLeftThreshold <= 0 || l.TurnRightThreshold >= 1 || l.TurnLeftThreshold >= l.TurnRightThreshold {
		return fmt.Errorf("invalid head turn thresholds: %.2f / %.2f", l.TurnLeftThreshold, l.TurnRightThreshold)
	}

	ch := c.Challenge
	if len(ch.ChallengeTypes) == 0 {
		return fmt.Errorf("at least one challenge type is required")
	}
	for _, t := range ch.ChallengeTypes {
		switch t {
		case "blink", "turn_left", "turn_right", "open_mouth":
		default:
			return fmt.Errorf("unknown challenge type %q", t)
		}
	}
	if ch.BlinkFrames <= 0 || ch.MouthOpenFrames <= 0 || ch.TurnFrames <= 0 {
		return fmt.Errorf("challenge frame counts must be positive")
	}
	if ch.TimeoutSeconds < 0 {
		return fmt.Errorf("challenge timeout cannot be negative")
	}

	if c.Capture.PadX < 0 || c.Capture.PadY < 0 {
		return fmt.Errorf("capture padding cannot be negative")
	}
	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be between 1 and 100")
	}

	if c.Daemon.MaxSessions <= 0 {
		return fmt.Errorf("max sessions must be positive")
	}

	return nil
}
