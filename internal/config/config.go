// Package config loads service settings from the environment and the model
// profile from YAML.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds the service settings.
type Config struct {
	Addr        string
	DataDir     string
	StaticDir   string
	CameraID    int
	ModelPath   string
	ProfilePath string

	// ONNX Runtime.
	LibraryPath  string
	Provider     string
	IntraThreads int
	InterThreads int

	// Pipeline overrides. A nil pointer or zero duration/threshold keeps the
	// profile's setting.
	MinConfidence    *float64
	IoUThreshold     float64
	MaxHands         *int
	InferenceTimeout time.Duration

	PluginDir     string
	PluginTimeout time.Duration

	LogLevel string
	LogFile  string
	LogEvery int

	ActivityThreshold float64
	Tray              bool
}

// Load reads the given .env files (missing files are ignored) and builds a
// Config from the environment. Variables already set in the environment
// take precedence over .env values.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "load %s", f)
		}
	}

	dataDir := getEnv("FINGERS_DATA_DIR", defaultDataDir())

	return &Config{
		Addr:        getEnv("FINGERS_ADDR", ":8080"),
		DataDir:     dataDir,
		StaticDir:   getEnv("FINGERS_STATIC_DIR", ""),
		CameraID:    getEnvAsInt("FINGERS_CAMERA_ID", 0),
		ModelPath:   getEnv("FINGERS_MODEL", filepath.Join(dataDir, "models", "MediaPipeHandDetector.onnx")),
		ProfilePath: getEnv("FINGERS_MODEL_PROFILE", ""),

		LibraryPath:  getEnv("ONNXRUNTIME_LIB", ""),
		Provider:     getEnv("FINGERS_PROVIDER", "cpu"),
		IntraThreads: getEnvAsInt("FINGERS_INTRA_THREADS", 4),
		InterThreads: getEnvAsInt("FINGERS_INTER_THREADS", 1),

		MinConfidence:    lookupEnvAsFloat("FINGERS_MIN_CONFIDENCE"),
		IoUThreshold:     getEnvAsFloat("FINGERS_IOU_THRESHOLD", 0),
		MaxHands:         lookupEnvAsInt("FINGERS_MAX_HANDS"),
		InferenceTimeout: getEnvAsDuration("FINGERS_INFERENCE_TIMEOUT", 0),

		PluginDir:     getEnv("FINGERS_PLUGIN_DIR", filepath.Join(dataDir, "plugins")),
		PluginTimeout: getEnvAsDuration("FINGERS_PLUGIN_TIMEOUT", 5*time.Second),

		LogLevel: getEnv("FINGERS_LOG_LEVEL", "info"),
		LogFile:  getEnv("FINGERS_LOG_FILE", ""),
		LogEvery: getEnvAsInt("FINGERS_LOG_EVERY", 15),

		ActivityThreshold: getEnvAsFloat("FINGERS_ACTIVITY_THRESHOLD", 1.0),
		Tray:              getEnvAsBool("FINGERS_TRAY", false),
	}, nil
}

// DatabasePath returns the SQLite file inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "fingers.db")
}

// Validate checks values the environment getters cannot reject on their own.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("listen address is empty")
	}
	if c.DataDir == "" {
		return errors.New("data directory is empty")
	}
	if c.MinConfidence != nil && (*c.MinConfidence < 0 || *c.MinConfidence > 1) {
		return errors.Errorf("min confidence %v outside [0,1]", *c.MinConfidence)
	}
	if c.IoUThreshold < 0 || c.IoUThreshold > 1 {
		return errors.Errorf("iou threshold %v outside [0,1]", c.IoUThreshold)
	}
	if c.MaxHands != nil && *c.MaxHands < 0 {
		return errors.Errorf("max hands %d", *c.MaxHands)
	}
	if c.LogEvery < 0 {
		return errors.Errorf("log every %d", c.LogEvery)
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fingers"
	}
	return filepath.Join(home, ".fingers")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// lookupEnvAsFloat returns nil when key is unset or not a number.
func lookupEnvAsFloat(key string) *float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return nil
	}
	return &f
}

// lookupEnvAsInt returns nil when key is unset or not an integer.
func lookupEnvAsInt(key string) *int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return nil
	}
	return &n
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("250ms") or bare milliseconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
