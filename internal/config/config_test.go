package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			StaticDir:       "web/static",
			ShutdownTimeout: 10 * time.Second,
		},
		WebSocket: WebSocketConfig{
			ReadLimit:    4096,
			WriteTimeout: 10 * time.Second,
			PongTimeout:  time.Minute,
			PingPeriod:   54 * time.Second,
			OutboxBuffer: 64,
		},
		Stage: StageConfig{
			MinX: 50,
			MaxX: 550,
			MinY: 50,
			MaxY: 350,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestServerAddr(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "0.0.0.0:3000", cfg.Server.Addr())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	err := os.WriteFile(path, []byte(`
server:
  host: 127.0.0.1
  port: 8081
  static_dir: public
websocket:
  read_limit: 2048
  pong_timeout: 30s
  ping_period: 27s
stage:
  max_x: 800
  max_y: 600
logging:
  level: debug
  format: console
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "public", cfg.Server.StaticDir)
	assert.Equal(t, int64(2048), cfg.WebSocket.ReadLimit)
	assert.Equal(t, float64(800), cfg.Stage.MaxX)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset keys fall back to defaults.
	assert.Equal(t, 64, cfg.WebSocket.OutboxBuffer)
	assert.Equal(t, float64(50), cfg.Stage.MinX)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "web/static", cfg.Server.StaticDir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestValidateServerPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Server.Port = 65536
	assert.Error(t, cfg.Validate())
}

func TestValidateStaticDirEmpty(t *testing.T) {
	cfg := validConfig()
	cfg.Server.StaticDir = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateWebSocketReadLimit(t *testing.T) {
	cfg := validConfig()
	cfg.WebSocket.ReadLimit = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateWebSocketPingPeriod(t *testing.T) {
	cfg := validConfig()
	cfg.WebSocket.PingPeriod = cfg.WebSocket.PongTimeout
	assert.Error(t, cfg.Validate())
}

func TestValidateStageBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Stage.MaxX = cfg.Stage.MinX
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Stage.MaxY = cfg.Stage.MinY - 1
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logging.Level = level
		assert.NoError(t, cfg.Validate(), "level %q should be valid", level)
	}
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingFormat(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		cfg := validConfig()
		cfg.Logging.Format = format
		assert.NoError(t, cfg.Validate(), "format %q should be valid", format)
	}
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

// Property-based tests

func TestPropertyValidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.IntRange(1, 65535).Draw(t, "port")
		cfg := validConfig()
		cfg.Server.Port = port
		if err := cfg.Validate(); err != nil {
			t.Fatalf("valid port %d rejected: %v", port, err)
		}
	})
}

func TestPropertyInvalidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.OneOf(
			rapid.IntRange(-1000, 0),
			rapid.IntRange(65536, 100000),
		).Draw(t, "port")
		cfg := validConfig()
		cfg.Server.Port = port
		if cfg.Validate() == nil {
			t.Fatalf("invalid port %d accepted", port)
		}
	})
}

func TestPropertyStageBoundsOrdered(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		minX := rapid.Float64Range(0, 1000).Draw(t, "min_x")
		width := rapid.Float64Range(1, 1000).Draw(t, "width")
		minY := rapid.Float64Range(0, 1000).Draw(t, "min_y")
		height := rapid.Float64Range(1, 1000).Draw(t, "height")

		cfg := validConfig()
		cfg.Stage = StageConfig{MinX: minX, MaxX: minX + width, MinY: minY, MaxY: minY + height}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("valid stage bounds rejected: %v", err)
		}

		cfg.Stage = StageConfig{MinX: minX + width, MaxX: minX, MinY: minY, MaxY: minY + height}
		if cfg.Validate() == nil {
			t.Fatalf("inverted x bounds accepted")
		}
	})
}
