package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultScoreThreshold is the confidence a detection must exceed to enter the history.
	DefaultScoreThreshold = 0.6
	// DefaultHistoryCapacity is the number of history entries kept by the dashboard.
	DefaultHistoryCapacity = 10
)

// Model backends.
const (
	BackendSSD    = "ssd"
	BackendRemote = "remote"
)

type Config struct {
	Port                 int               `yaml:"port"`
	Password             string            `yaml:"password"`
	ModelBackend         string            `yaml:"modelBackend"`
	ModelPath            string            `yaml:"modelPath"`
	ModelConfigPath      string            `yaml:"modelConfigPath"`
	RemoteModelURL       string            `yaml:"remoteModelURL"`
	RemoteModelTimeout   int               `yaml:"remoteModelTimeoutMs"`
	CameraDevice         string            `yaml:"cameraDevice"` // device index or stream URL, empty disables local capture
	CamerasPort          int               `yaml:"camerasPort"`  // UDP port for network cameras, 0 disables
	CameraNames          map[string]string `yaml:"cameraNames"`  // camera IP -> display name
	FrameInterval        int               `yaml:"frameIntervalMs"`
	ScoreThreshold       float64           `yaml:"scoreThreshold"`
	HistoryCapacity      int               `yaml:"historyCapacity"`
	ImageDirectory       string            `yaml:"imageDir"`
	DatabasePath         string            `yaml:"dbPath"`
	CaptureLimit         int               `yaml:"captureLimit"`         // captures buffered per source between flushes
	CaptureFlushInterval int               `yaml:"captureFlushInterval"` // seconds
	StaticDirectory      string            `yaml:"staticDir"`
	LogDirectory         string            `yaml:"logDir"`
	LogDevelopment       bool              `yaml:"logDevelopment"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port:                 8080,
		Password:             "changeme",
		ModelBackend:         BackendSSD,
		ModelPath:            filepath.Join(".", "models", "frozen_inference_graph.pb"),
		ModelConfigPath:      filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt"),
		RemoteModelTimeout:   5000,
		CameraDevice:         "",
		CamerasPort:          0,
		CameraNames:          map[string]string{},
		FrameInterval:        100,
		ScoreThreshold:       DefaultScoreThreshold,
		HistoryCapacity:      DefaultHistoryCapacity,
		ImageDirectory:       filepath.Join(".", "captures"),
		DatabasePath:         filepath.Join(".", "data", "captures.db"),
		CaptureLimit:         5,
		CaptureFlushInterval: 30,
		StaticDirectory:      "static",
		LogDirectory:         filepath.Join(".", "logs"),
	}
}

// Load builds the configuration from defaults, an optional YAML file (CONFIG_FILE)
// and environment variables, in that order. A .env file in the working directory
// is loaded into the environment first.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvAsInt("PORT", c.Port)
	c.Password = getEnv("PASSWORD", c.Password)
	c.ModelBackend = getEnv("MODEL_BACKEND", c.ModelBackend)
	c.ModelPath = getEnv("MODEL_PATH", c.ModelPath)
	c.ModelConfigPath = getEnv("MODEL_CONFIG_PATH", c.ModelConfigPath)
	c.RemoteModelURL = getEnv("REMOTE_MODEL_URL", c.RemoteModelURL)
	c.RemoteModelTimeout = getEnvAsInt("REMOTE_MODEL_TIMEOUT_MS", c.RemoteModelTimeout)
	c.CameraDevice = getEnv("CAMERA_DEVICE", c.CameraDevice)
	c.CamerasPort = getEnvAsInt("CAMERAS_PORT", c.CamerasPort)
	if value := os.Getenv("CAMERA_NAMES"); value != "" {
		c.CameraNames = parseCameraNames(value)
	}
	c.FrameInterval = getEnvAsInt("FRAME_INTERVAL_MS", c.FrameInterval)
	c.ScoreThreshold = getEnvAsFloat("SCORE_THRESHOLD", c.ScoreThreshold)
	c.HistoryCapacity = getEnvAsInt("HISTORY_CAPACITY", c.HistoryCapacity)
	c.ImageDirectory = getEnv("IMAGE_DIR", c.ImageDirectory)
	c.DatabasePath = getEnv("DB_PATH", c.DatabasePath)
	c.CaptureLimit = getEnvAsInt("CAPTURE_LIMIT", c.CaptureLimit)
	c.CaptureFlushInterval = getEnvAsInt("CAPTURE_FLUSH_INTERVAL", c.CaptureFlushInterval)
	c.StaticDirectory = getEnv("STATIC_DIR", c.StaticDirectory)
	c.LogDirectory = getEnv("LOG_DIR", c.LogDirectory)
	c.LogDevelopment = getEnvAsBool("LOG_DEVELOPMENT", c.LogDevelopment)
}

// normalize replaces unusable values with defaults.
func (c *Config) normalize() {
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		c.ScoreThreshold = DefaultScoreThreshold
	}
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = DefaultHistoryCapacity
	}
	if c.FrameInterval < 0 {
		c.FrameInterval = 0
	}
	if c.CaptureLimit <= 0 {
		c.CaptureLimit = 1
	}
	if c.CaptureFlushInterval <= 0 {
		c.CaptureFlushInterval = 30
	}
	if c.CameraNames == nil {
		c.CameraNames = map[string]string{}
	}
	c.ModelBackend = strings.ToLower(strings.TrimSpace(c.ModelBackend))
}

// Validate reports configuration that cannot be used to start the server.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	switch c.ModelBackend {
	case BackendSSD:
	case BackendRemote:
		if c.RemoteModelURL == "" {
			return errors.New("REMOTE_MODEL_URL is required for the remote model backend")
		}
	default:
		return fmt.Errorf("unsupported model backend: %q", c.ModelBackend)
	}
	return nil
}

// parseCameraNames parses "ip=name,ip=name" pairs; malformed pairs are skipped.
func parseCameraNames(value string) map[string]string {
	names := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		ip, name, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || ip == "" || name == "" {
			continue
		}
		names[strings.TrimSpace(ip)] = strings.TrimSpace(name)
	}
	return names
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
