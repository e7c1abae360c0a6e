package config

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 9000, cfg.TCPPort)
	assert.Equal(t, 32, cfg.QueueCapacity)
	assert.Equal(t, "0.0.0.0:9000", cfg.TCPAddr())
	assert.True(t, cfg.HasTransport(TransportWS))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TCP_PORT", "9100")
	t.Setenv("TRANSPORTS", "tcp, ws ,")
	t.Setenv("FANOUT_MODE", "shared")
	t.Setenv("SOURCE", "file")
	t.Setenv("VIDEO_PATH", "clip.mp4")
	t.Setenv("FILE_FPS", "29.97")
	t.Setenv("SHOW_PREVIEW", "true")
	t.Setenv("INFERENCE_TIMEOUT", "750ms")
	t.Setenv("QUEUE_CAPACITY", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.TCPPort)
	assert.Equal(t, []string{"tcp", "ws"}, cfg.Transports)
	assert.Equal(t, FanoutShared, cfg.FanoutMode)
	assert.Equal(t, "clip.mp4", cfg.VideoPath)
	assert.InDelta(t, 29.97, cfg.FileFPS, 1e-9)
	assert.True(t, cfg.ShowPreview)
	assert.Equal(t, 750*time.Millisecond, cfg.InferenceTimeout)
	assert.Equal(t, 32, cfg.QueueCapacity)
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "posestream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tcp_port: 9200
ws_port: 9201
transports: [ws]
queue_capacity: 8
stats_interval: 5s
num_poses: 2
`), 0644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("WS_PORT", "9300")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.TCPPort)
	assert.Equal(t, 9300, cfg.WSPort)
	assert.Equal(t, []string{"ws"}, cfg.Transports)
	assert.Equal(t, 8, cfg.QueueCapacity)
	assert.Equal(t, 5*time.Second, cfg.StatsInterval)
	assert.Equal(t, 2, cfg.NumPoses)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MQTT_TOPIC=poses/test\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("MQTT_TOPIC") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "poses/test", cfg.MQTTTopic)
}

func TestValidate_Errors(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown transport": func(c *Config) { c.Transports = []string{"udp"} },
		"mqtt without broker": func(c *Config) { c.Transports = []string{TransportMQTT} },
		"no transports":       func(c *Config) { c.Transports = nil },
		"same ports":          func(c *Config) { c.WSPort = c.TCPPort },
		"bad fanout":          func(c *Config) { c.FanoutMode = "multicast" },
		"zero capacity":       func(c *Config) { c.QueueCapacity = 0 },
		"file without path":   func(c *Config) { c.Source = SourceFile },
		"bad source":          func(c *Config) { c.Source = "rtsp" },
		"bad roi":             func(c *Config) { c.ROI = "1,2,3" },
		"no poses":            func(c *Config) { c.NumPoses = 0 },
		"bad path":            func(c *Config) { c.WSPath = "stream" },
		"port range":          func(c *Config) { c.TCPPort = 70000 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestROIRect(t *testing.T) {
	cfg := Default()
	rect, err := cfg.ROIRect()
	require.NoError(t, err)
	assert.True(t, rect.Empty())

	cfg.ROI = "10, 20, 100, 50"
	rect, err = cfg.ROIRect()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(10, 20, 110, 70), rect)
}
