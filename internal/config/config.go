package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Extent is an axis-aligned rectangle in projected map units.
type Extent struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// GuamExtent is the EPSG:3857 rectangle the survey grid and the map view cover.
var GuamExtent = Extent{MinX: 16098000, MinY: 1486000, MaxX: 16137000, MaxY: 1535000}

const (
	DefaultBaseMapURL     = "https://a.tile.openstreetmap.org/{z}/{x}/{y}.png"
	DefaultGridSpacing    = 1000.0
	DefaultSimplifyTol    = 10.0
	DefaultParamsFile     = "make_crb_damage_map.yaml"
	DefaultStorePath      = "./data/videosurvey.db"
	DefaultOutputDir      = "./output"
	DefaultRateLimit      = 20.0
	DefaultRateLimitBurst = 40
)

// Config 应用配置
type Config struct {
	Port       string
	DBPath     string // project store (sqlite)
	OutputDir  string
	ParamsFile string
	JWTSecret  string // empty disables API auth
	LogLevel   string
	LogFormat  string

	BaseMapURL        string
	GridExtent        Extent
	GridHSpacing      float64
	GridVSpacing      float64
	SimplifyTolerance float64

	RateLimit       float64 // requests per second per client
	RateLimitBurst  int
	RebuildSchedule string // cron spec; empty disables scheduled rebuilds
}

// Load 加载配置
func Load() (*Config, error) {
	_ = godotenv.Load()

	extent, err := ParseExtent(getEnv("GRID_EXTENT", ""))
	if err != nil {
		return nil, err
	}

	hSpacing, vSpacing, err := parseSpacing(getEnv("GRID_SPACING", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:              getEnv("PORT", ":8080"),
		DBPath:            getEnv("DB_PATH", DefaultStorePath),
		OutputDir:         getEnv("OUTPUT_DIR", DefaultOutputDir),
		ParamsFile:        getEnv("PARAMS_FILE", DefaultParamsFile),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		BaseMapURL:        getEnv("BASEMAP_URL", DefaultBaseMapURL),
		GridExtent:        extent,
		GridHSpacing:      hSpacing,
		GridVSpacing:      vSpacing,
		SimplifyTolerance: getEnvFloat("SIMPLIFY_TOLERANCE", DefaultSimplifyTol),
		RateLimit:         getEnvFloat("RATE_LIMIT", DefaultRateLimit),
		RateLimitBurst:    getEnvInt("RATE_LIMIT_BURST", DefaultRateLimitBurst),
		RebuildSchedule:   os.Getenv("REBUILD_SCHEDULE"),
	}

	if cfg.SimplifyTolerance < 0 {
		return nil, fmt.Errorf("SIMPLIFY_TOLERANCE must not be negative: %v", cfg.SimplifyTolerance)
	}
	return cfg, nil
}

// ParseExtent parses "xmin,xmax,ymin,ymax" (the order the processing toolbox
// uses). An empty string yields GuamExtent.
func ParseExtent(s string) (Extent, error) {
	if strings.TrimSpace(s) == "" {
		return GuamExtent, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Extent{}, fmt.Errorf("invalid extent %q: want xmin,xmax,ymin,ymax", s)
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Extent{}, fmt.Errorf("invalid extent %q: %w", s, err)
		}
		v[i] = f
	}

	e := Extent{MinX: v[0], MaxX: v[1], MinY: v[2], MaxY: v[3]}
	if e.MinX >= e.MaxX || e.MinY >= e.MaxY {
		return Extent{}, fmt.Errorf("invalid extent %q: min must be below max", s)
	}
	return e, nil
}

func parseSpacing(s string) (float64, float64, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultGridSpacing, DefaultGridSpacing, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) > 2 {
		return 0, 0, fmt.Errorf("invalid grid spacing %q", s)
	}

	h, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid grid spacing %q: %w", s, err)
	}
	v := h
	if len(parts) == 2 {
		v, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid grid spacing %q: %w", s, err)
		}
	}
	if h <= 0 || v <= 0 {
		return 0, 0, fmt.Errorf("invalid grid spacing %q: must be positive", s)
	}
	return h, v, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
