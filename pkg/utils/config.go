package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr       string   `yaml:"http_addr"`
	GRPCAddr       string   `yaml:"grpc_addr"`
	LogLevel       string   `yaml:"log_level"`
	LogFormat      string   `yaml:"log_format"` // "json" or "console"
	AllowedOrigins []string `yaml:"allowed_origins"`

	LightCurve LightCurveConfig `yaml:"lightcurve"`
	Model      ModelConfig      `yaml:"model"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Auth       AuthConfig       `yaml:"auth"`
}

type LightCurveConfig struct {
	CacheDir        string   `yaml:"cache_dir"`
	TimeoutSeconds  int      `yaml:"timeout_seconds"`
	PrecacheTargets []string `yaml:"precache_targets"`
	PrecacheWorkers int      `yaml:"precache_workers"`
	Mission         string   `yaml:"mission"`
	ArchiveURL      string   `yaml:"archive_url"`
}

// Timeout is the download bound as a duration.
func (c LightCurveConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ModelConfig struct {
	Path        string `yaml:"path"`
	MetricsPath string `yaml:"metrics_path"`
}

type CatalogConfig struct {
	CSVPath string `yaml:"csv_path"`
}

type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	JWTIssuer    string        `yaml:"jwt_issuer"`
	JWTDuration  time.Duration `yaml:"jwt_ttl"`
	AdminKeyHash string        `yaml:"admin_key_hash"` // bcrypt; empty disables /admin
}

// DefaultPrecacheTargets are warmed at start-up unless overridden.
var DefaultPrecacheTargets = []string{"Kepler-22", "Kepler-186", "Kepler-452", "Kepler-10", "Kepler-16"}

func DefaultConfig() Config {
	return Config{
		HTTPAddr:       ":8000",
		GRPCAddr:       ":9090",
		LogLevel:       "info",
		LogFormat:      "console",
		AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		LightCurve: LightCurveConfig{
			CacheDir:        "lightcurves",
			TimeoutSeconds:  60,
			PrecacheTargets: append([]string(nil), DefaultPrecacheTargets...),
			PrecacheWorkers: 2,
			Mission:         "Kepler",
			ArchiveURL:      "https://mast.stsci.edu",
		},
		Model: ModelConfig{
			Path:        "model_rf.json",
			MetricsPath: filepath.Join("..", "training", "training_metrics.json"),
		},
		Catalog: CatalogConfig{
			CSVPath: filepath.Join("..", "training", "cumulative.csv"),
		},
		Auth: AuthConfig{
			// dev default (change for demo / production)
			JWTSecret:   "dev-secret-change-me",
			JWTIssuer:   "keplerhub",
			JWTDuration: 12 * time.Hour,
		},
	}
}

// LoadConfig builds the config from defaults, an optional YAML file and
// KEPLERHUB_* environment variables, in that order of precedence.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("KEPLERHUB_CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.HTTPAddr, "KEPLERHUB_HTTP_ADDR")
	setString(&cfg.GRPCAddr, "KEPLERHUB_GRPC_ADDR")
	setString(&cfg.LogLevel, "KEPLERHUB_LOG_LEVEL")
	setString(&cfg.LogFormat, "KEPLERHUB_LOG_FORMAT")
	setList(&cfg.AllowedOrigins, "KEPLERHUB_ALLOWED_ORIGINS")

	setString(&cfg.LightCurve.CacheDir, "KEPLERHUB_CACHE_DIR")
	setInt(&cfg.LightCurve.TimeoutSeconds, "KEPLERHUB_DOWNLOAD_TIMEOUT_SECONDS")
	setList(&cfg.LightCurve.PrecacheTargets, "KEPLERHUB_PRECACHE_TARGETS")
	setInt(&cfg.LightCurve.PrecacheWorkers, "KEPLERHUB_PRECACHE_WORKERS")
	setString(&cfg.LightCurve.Mission, "KEPLERHUB_MISSION")
	setString(&cfg.LightCurve.ArchiveURL, "KEPLERHUB_ARCHIVE_URL")

	setString(&cfg.Model.Path, "KEPLERHUB_MODEL_PATH")
	setString(&cfg.Model.MetricsPath, "KEPLERHUB_METRICS_PATH")
	setString(&cfg.Catalog.CSVPath, "KEPLERHUB_CATALOG_CSV")

	setString(&cfg.Auth.JWTSecret, "KEPLERHUB_JWT_SECRET")
	setString(&cfg.Auth.JWTIssuer, "KEPLERHUB_JWT_ISSUER")
	setString(&cfg.Auth.AdminKeyHash, "KEPLERHUB_ADMIN_KEY_HASH")
	if v := os.Getenv("KEPLERHUB_JWT_TTL_HOURS"); v != "" {
		// if parse fails, keep the default
		if h, err := strconv.Atoi(v); err == nil && h > 0 {
			cfg.Auth.JWTDuration = time.Duration(h) * time.Hour
		}
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		*dst = n
	}
}

// setList reads a comma separated list. An env var set to "-" clears it.
func setList(dst *[]string, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	v = strings.TrimSpace(v)
	if v == "-" {
		*dst = nil
		return
	}
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}
