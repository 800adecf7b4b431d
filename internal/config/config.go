package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	API       APIConfig       `yaml:"api"`
	Auth      AuthConfig      `yaml:"auth"`
	JWT       JWTConfig       `yaml:"jwt"`
	Database  DatabaseConfig  `yaml:"database"`
	NATS      NATSConfig      `yaml:"nats"`
	Log       LogConfig       `yaml:"log"`
	Camera    CameraConfig    `yaml:"camera"`
	Paths     PathsConfig     `yaml:"paths"`
	Preview   PreviewConfig   `yaml:"preview"`
	Timelapse TimelapseConfig `yaml:"timelapse"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
}

// ServerConfig represents server identity configuration
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// APIConfig represents API configuration
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AuthConfig represents the operator account
type AuthConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
}

// JWTConfig represents JWT configuration
type JWTConfig struct {
	Secret          string        `yaml:"secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
}

// DatabaseConfig represents capture-history database configuration
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// NATSConfig represents event bus configuration
type NATSConfig struct {
	URL               string        `yaml:"url"`
	MaxReconnects     int           `yaml:"max_reconnects"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CameraConfig represents camera driver configuration
type CameraConfig struct {
	Binary         string        `yaml:"binary"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// PathsConfig represents the on-disk layout
type PathsConfig struct {
	BaseDir      string `yaml:"base_dir"`
	TimelapseDir string `yaml:"timelapse_dir"`
	CaptureDir   string `yaml:"capture_dir"`
	PreviewFile  string `yaml:"preview_file"`
}

// PreviewConfig represents preview loop configuration
type PreviewConfig struct {
	DefaultRate  float64       `yaml:"default_rate"`
	FailureRetry time.Duration `yaml:"failure_retry"`
	StopTimeout  time.Duration `yaml:"stop_timeout"`
}

// TimelapseConfig represents timelapse loop configuration
type TimelapseConfig struct {
	DefaultInterval int `yaml:"default_interval"`
	DefaultCount    int `yaml:"default_count"`
}

// FFmpegConfig represents video assembly configuration
type FFmpegConfig struct {
	Path      string `yaml:"path"`
	FrameRate int    `yaml:"frame_rate"`
	Preset    string `yaml:"preset"`
	CRF       int    `yaml:"crf"`
}

// Load loads configuration from file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		c.NATS.URL = natsURL
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		c.JWT.Secret = jwtSecret
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}

	if bin := os.Getenv("GPHOTO2_BIN"); bin != "" {
		c.Camera.Binary = bin
	}
}

// setDefaults fills unset fields with defaults
func (c *Config) setDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "camera-server"
	}
	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.JWT.AccessTokenTTL == 0 {
		c.JWT.AccessTokenTTL = 15 * time.Minute
	}
	if c.JWT.RefreshTokenTTL == 0 {
		c.JWT.RefreshTokenTTL = 24 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.NATS.MaxReconnects == 0 {
		c.NATS.MaxReconnects = 10
	}
	if c.NATS.ReconnectInterval == 0 {
		c.NATS.ReconnectInterval = 5 * time.Second
	}
	if c.Camera.Binary == "" {
		c.Camera.Binary = "gphoto2"
	}
	if c.Camera.CommandTimeout == 0 {
		c.Camera.CommandTimeout = 30 * time.Second
	}
	if c.Paths.BaseDir == "" {
		c.Paths.BaseDir = "data"
	}
	if c.Paths.TimelapseDir == "" {
		c.Paths.TimelapseDir = filepath.Join(c.Paths.BaseDir, "timelapse_data")
	}
	if c.Paths.CaptureDir == "" {
		c.Paths.CaptureDir = filepath.Join(c.Paths.BaseDir, "single_captures")
	}
	if c.Paths.PreviewFile == "" {
		c.Paths.PreviewFile = filepath.Join(c.Paths.BaseDir, "previews", "preview.jpg")
	}
	if c.Preview.DefaultRate == 0 {
		c.Preview.DefaultRate = 1.0
	}
	if c.Preview.FailureRetry == 0 {
		c.Preview.FailureRetry = 2 * time.Second
	}
	if c.Preview.StopTimeout == 0 {
		c.Preview.StopTimeout = 5 * time.Second
	}
	if c.Timelapse.DefaultInterval == 0 {
		c.Timelapse.DefaultInterval = 5
	}
	if c.Timelapse.DefaultCount == 0 {
		c.Timelapse.DefaultCount = 100
	}
	if c.FFmpeg.Path == "" {
		c.FFmpeg.Path = "ffmpeg"
	}
	if c.FFmpeg.FrameRate == 0 {
		c.FFmpeg.FrameRate = 24
	}
	if c.FFmpeg.Preset == "" {
		c.FFmpeg.Preset = "medium"
	}
	if c.FFmpeg.CRF == 0 {
		c.FFmpeg.CRF = 23
	}
}

// validate checks configuration consistency
func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required (or set JWT_SECRET)")
	}
	if c.Auth.Username == "" || c.Auth.PasswordHash == "" {
		return fmt.Errorf("auth.username and auth.password_hash are required")
	}
	if c.Preview.DefaultRate <= 0 {
		return fmt.Errorf("preview.default_rate must be positive")
	}
	if c.Timelapse.DefaultInterval <= 0 || c.Timelapse.DefaultCount <= 0 {
		return fmt.Errorf("timelapse defaults must be positive")
	}
	return nil
}

// EnsureDirectories creates the on-disk layout
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.TimelapseDir,
		c.Paths.CaptureDir,
		filepath.Dir(c.Paths.PreviewFile),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// PrintConfigSummary prints a configuration summary
func (c *Config) PrintConfigSummary() {
	fmt.Printf("=== Camera Server Configuration ===\n")
	fmt.Printf("Server: %s v%s\n", c.Server.Name, c.Server.Version)
	fmt.Printf("API: %s:%d\n", c.API.Host, c.API.Port)
	fmt.Printf("Camera binary: %s (timeout %s)\n", c.Camera.Binary, c.Camera.CommandTimeout)
	fmt.Printf("Timelapse dir: %s\n", c.Paths.TimelapseDir)
	fmt.Printf("Capture dir: %s\n", c.Paths.CaptureDir)
	fmt.Printf("Preview file: %s (default %.1f fps)\n", c.Paths.PreviewFile, c.Preview.DefaultRate)
	if c.Database.DSN != "" {
		fmt.Printf("History store: postgres\n")
	} else {
		fmt.Printf("History store: in-memory\n")
	}
	if c.NATS.URL != "" {
		fmt.Printf("Events: NATS %s\n", c.NATS.URL)
	} else {
		fmt.Printf("Events: disabled\n")
	}
	fmt.Printf("===================================\n")
}
