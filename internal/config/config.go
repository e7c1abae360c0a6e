package config

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	SourceCamera = "camera"
	SourceFile   = "file"

	FanoutBroadcast = "broadcast"
	FanoutShared    = "shared"

	TransportTCP  = "tcp"
	TransportWS   = "ws"
	TransportMQTT = "mqtt"
)

type Config struct {
	Host          string   `yaml:"host"`
	TCPPort       int      `yaml:"tcp_port"`
	WSPort        int      `yaml:"ws_port"`
	WSPath        string   `yaml:"ws_path"`
	Transports    []string `yaml:"transports"`
	FanoutMode    string   `yaml:"fanout_mode"`
	QueueCapacity int      `yaml:"queue_capacity"`

	Source      string  `yaml:"source"`
	CameraID    int     `yaml:"camera_id"`
	VideoPath   string  `yaml:"video_path"`
	FrameWidth  int     `yaml:"frame_width"`
	FrameHeight int     `yaml:"frame_height"`
	FileFPS     float64 `yaml:"file_fps"` // 0 takes the rate from the container
	Flip        bool    `yaml:"flip"`     // mirror live frames
	ROI         string  `yaml:"roi"`      // x,y,w,h highlighted on replayed frames

	ModelPath        string        `yaml:"model_path"`
	WorkerCommand    string        `yaml:"worker_command"`
	WorkerScript     string        `yaml:"worker_script"`
	NumPoses         int           `yaml:"num_poses"`
	InferenceTimeout time.Duration `yaml:"inference_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`

	ShowPreview   bool          `yaml:"show_preview"`
	LogDirectory  string        `yaml:"log_dir"`
	Debug         bool          `yaml:"debug"`
	DatabasePath  string        `yaml:"database_path"` // empty disables the session ledger
	MQTTBroker    string        `yaml:"mqtt_broker"`
	MQTTTopic     string        `yaml:"mqtt_topic"`
	StatsInterval time.Duration `yaml:"stats_interval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Host:             "0.0.0.0",
		TCPPort:          9000,
		WSPort:           9001,
		WSPath:           "/",
		Transports:       []string{TransportTCP, TransportWS},
		FanoutMode:       FanoutBroadcast,
		QueueCapacity:    32,
		Source:           SourceCamera,
		FrameWidth:       1280,
		FrameHeight:      960,
		ModelPath:        filepath.Join(".", "tasks", "pose_landmarker_lite.task"),
		WorkerCommand:    "python3",
		WorkerScript:     filepath.Join(".", "scripts", "pose_worker.py"),
		NumPoses:         1,
		InferenceTimeout: 2 * time.Second,
		WriteTimeout:     5 * time.Second,
		LogDirectory:     filepath.Join(".", "logs"),
		MQTTTopic:        "posestream/detections",
		StatsInterval:    30 * time.Second,
	}
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE (if
// set), then environment variables, each layer overriding the previous one.
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
	c.Host = getEnv("HOST", c.Host)
	c.TCPPort = getEnvAsInt("TCP_PORT", c.TCPPort)
	c.WSPort = getEnvAsInt("WS_PORT", c.WSPort)
	c.WSPath = getEnv("WS_PATH", c.WSPath)
	c.Transports = getEnvAsList("TRANSPORTS", c.Transports)
	c.FanoutMode = getEnv("FANOUT_MODE", c.FanoutMode)
	c.QueueCapacity = getEnvAsInt("QUEUE_CAPACITY", c.QueueCapacity)

	c.Source = getEnv("SOURCE", c.Source)
	c.CameraID = getEnvAsInt("CAMERA_ID", c.CameraID)
	c.VideoPath = getEnv("VIDEO_PATH", c.VideoPath)
	c.FrameWidth = getEnvAsInt("FRAME_WIDTH", c.FrameWidth)
	c.FrameHeight = getEnvAsInt("FRAME_HEIGHT", c.FrameHeight)
	c.FileFPS = getEnvAsFloat("FILE_FPS", c.FileFPS)
	c.Flip = getEnvAsBool("FLIP", c.Flip)
	c.ROI = getEnv("ROI", c.ROI)

	c.ModelPath = getEnv("MODEL_PATH", c.ModelPath)
	c.WorkerCommand = getEnv("WORKER_COMMAND", c.WorkerCommand)
	c.WorkerScript = getEnv("WORKER_SCRIPT", c.WorkerScript)
	c.NumPoses = getEnvAsInt("NUM_POSES", c.NumPoses)
	c.InferenceTimeout = getEnvAsDuration("INFERENCE_TIMEOUT", c.InferenceTimeout)
	c.WriteTimeout = getEnvAsDuration("WRITE_TIMEOUT", c.WriteTimeout)

	c.ShowPreview = getEnvAsBool("SHOW_PREVIEW", c.ShowPreview)
	c.LogDirectory = getEnv("LOG_DIR", c.LogDirectory)
	c.Debug = getEnvAsBool("DEBUG", c.Debug)
	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)
	c.MQTTBroker = getEnv("MQTT_BROKER", c.MQTTBroker)
	c.MQTTTopic = getEnv("MQTT_TOPIC", c.MQTTTopic)
	c.StatsInterval = getEnvAsDuration("STATS_INTERVAL", c.StatsInterval)
}

// Validate checks the configuration for values the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	for _, port := range []struct {
		name  string
		value int
	}{{"TCP_PORT", c.TCPPort}, {"WS_PORT", c.WSPort}} {
		if port.value < 0 || port.value > 65535 {
			errs = append(errs, fmt.Errorf("%s out of range: %d", port.name, port.value))
		}
	}
	if len(c.Transports) == 0 {
		errs = append(errs, errors.New("no transports enabled"))
	}
	for _, t := range c.Transports {
		switch t {
		case TransportTCP, TransportWS:
		case TransportMQTT:
			if c.MQTTBroker == "" {
				errs = append(errs, errors.New("mqtt transport requires MQTT_BROKER"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown transport %q", t))
		}
	}
	if c.HasTransport(TransportTCP) && c.HasTransport(TransportWS) && c.TCPPort == c.WSPort && c.TCPPort != 0 {
		errs = append(errs, fmt.Errorf("TCP_PORT and WS_PORT are both %d", c.TCPPort))
	}
	if !strings.HasPrefix(c.WSPath, "/") {
		errs = append(errs, fmt.Errorf("WS_PATH must start with /: %q", c.WSPath))
	}
	if c.FanoutMode != FanoutBroadcast && c.FanoutMode != FanoutShared {
		errs = append(errs, fmt.Errorf("unknown fanout mode %q", c.FanoutMode))
	}
	if c.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("QUEUE_CAPACITY must be positive: %d", c.QueueCapacity))
	}
	switch c.Source {
	case SourceCamera:
	case SourceFile:
		if c.VideoPath == "" {
			errs = append(errs, errors.New("file source requires VIDEO_PATH"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source %q", c.Source))
	}
	if c.FileFPS < 0 {
		errs = append(errs, fmt.Errorf("FILE_FPS must not be negative: %v", c.FileFPS))
	}
	if _, err := c.ROIRect(); err != nil {
		errs = append(errs, err)
	}
	if c.NumPoses < 1 {
		errs = append(errs, fmt.Errorf("NUM_POSES must be at least 1: %d", c.NumPoses))
	}
	if c.WorkerCommand == "" {
		errs = append(errs, errors.New("WORKER_COMMAND is required"))
	}
	return errors.Join(errs...)
}

// HasTransport reports whether transport name is enabled.
func (c *Config) HasTransport(name string) bool {
	for _, t := range c.Transports {
		if t == name {
			return true
		}
	}
	return false
}

func (c *Config) TCPAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.TCPPort))
}

func (c *Config) WSAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.WSPort))
}

// ROIRect parses ROI. An empty ROI returns the empty rectangle.
func (c *Config) ROIRect() (image.Rectangle, error) {
	if c.ROI == "" {
		return image.Rectangle{}, nil
	}
	parts := strings.Split(c.ROI, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("ROI must be x,y,w,h: %q", c.ROI)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return image.Rectangle{}, fmt.Errorf("invalid ROI value %q", p)
		}
		v[i] = n
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
