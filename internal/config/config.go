package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
	MaxRPS  float64
}

type StorageConfig struct {
	Driver   string
	Path     string
	TokenKey string
	ThemeKey string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// CameraConfig maps a facing mode ("environment", "user") to the URL of an
// MJPEG stream serving that camera.
type CameraConfig struct {
	Devices     map[string]string
	Width       int
	Height      int
	DialTimeout time.Duration
}

type AnalysisConfig struct {
	MinDuration    time.Duration
	StageInterval  time.Duration
	MaxUploadBytes int64
}

type SessionConfig struct {
	ExpirySweep string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Backend          BackendConfig
	Storage          StorageConfig
	Redis            RedisConfig
	Camera           CameraConfig
	Analysis         AnalysisConfig
	Session          SessionConfig
	AllowCORSOrigins []string
}

// Load reads dermassist.yaml (if any) and DERMASSIST_* environment variables.
// An explicit path overrides the search locations.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dermassist")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".dermassist"))
		}
	}

	v.SetEnvPrefix("DERMASSIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Storage.Driver == "sqlite" && cfg.Storage.Path == "" {
		cfg.Storage.Path = defaultStatePath()
	}
	cfg.Backend.BaseURL = strings.TrimRight(cfg.Backend.BaseURL, "/")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "127.0.0.1")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "30s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("backend.baseurl", "http://localhost:8000")
	v.SetDefault("backend.timeout", "30s")
	v.SetDefault("backend.maxrps", 0)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.tokenkey", "dermassist_token")
	v.SetDefault("storage.themekey", "dermassist_theme")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "dermassist:")

	v.SetDefault("camera.width", 1280)
	v.SetDefault("camera.height", 720)
	v.SetDefault("camera.dialtimeout", "5s")

	v.SetDefault("analysis.minduration", "4800ms") // four progress stages
	v.SetDefault("analysis.stageinterval", "1200ms")
	v.SetDefault("analysis.maxuploadbytes", 10<<20)

	v.SetDefault("session.expirysweep", "0 * * * * *")
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "dermassist.db"
	}
	return filepath.Join(dir, "dermassist", "state.db")
}
