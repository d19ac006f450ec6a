package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the pipeline. It is immutable after
// Load; each component receives it (or a sub-struct) at construction so
// multiple runs with different settings can coexist in one process.
type Config struct {
	Dirs    DirsConfig
	Search  SearchConfig
	Orbit   OrbitConfig
	Dem     DemConfig
	Engine  EngineConfig
	Auth    AuthConfig
	Metrics MetricsConfig
}

type DirsConfig struct {
	Work     string `mapstructure:"INSAR_WORK_DIR"`
	Download string `mapstructure:"INSAR_DOWNLOAD_DIR"`
	Orbit    string `mapstructure:"INSAR_ORBIT_DIR"`
	Dem      string `mapstructure:"INSAR_DEM_DIR"`
}

type SearchConfig struct {
	Endpoint string `mapstructure:"INSAR_SEARCH_ENDPOINT"`
	Platform string `mapstructure:"INSAR_SEARCH_PLATFORM"`
	BeamMode string `mapstructure:"INSAR_SEARCH_BEAM_MODE"`
	Product  string `mapstructure:"INSAR_SEARCH_PRODUCT"`
	PoolSize int    `mapstructure:"INSAR_FETCH_POOL_SIZE"`
}

type OrbitConfig struct {
	Endpoint string `mapstructure:"INSAR_ORBIT_ENDPOINT"`
	PoolSize int    `mapstructure:"INSAR_ORBIT_POOL_SIZE"`
}

type DemConfig struct {
	Dataset         string  `mapstructure:"INSAR_DEM_DATASET"`
	FallbackDataset string  `mapstructure:"INSAR_DEM_FALLBACK_DATASET"`
	StitcherPath    string  `mapstructure:"INSAR_DEM_STITCHER_PATH"`
	BufferDeg       float64 `mapstructure:"INSAR_DEM_BUFFER_DEG"`
	BufferStepDeg   float64 `mapstructure:"INSAR_DEM_BUFFER_STEP_DEG"`
	MaxAttempts     int     `mapstructure:"INSAR_DEM_MAX_ATTEMPTS"`
}

type EngineConfig struct {
	Path         string        `mapstructure:"INSAR_ENGINE_PATH"`
	Timeout      time.Duration `mapstructure:"INSAR_ENGINE_TIMEOUT"`
	AzimuthLooks int           `mapstructure:"INSAR_AZIMUTH_LOOKS"`
	RangeLooks   int           `mapstructure:"INSAR_RANGE_LOOKS"`
	Unwrapper    string        `mapstructure:"INSAR_UNWRAPPER"`
}

type AuthConfig struct {
	NetrcPath string `mapstructure:"INSAR_NETRC_PATH"`
	Machine   string `mapstructure:"INSAR_AUTH_MACHINE"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"INSAR_METRICS_ENABLED"`
	Port    int  `mapstructure:"INSAR_METRICS_PORT"`
}

// Load reads pipeline configuration from environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("INSAR_WORK_DIR", "work")
	viper.SetDefault("INSAR_DOWNLOAD_DIR", "data/slc")
	viper.SetDefault("INSAR_ORBIT_DIR", "data/orbits")
	viper.SetDefault("INSAR_DEM_DIR", "data/dem")
	viper.SetDefault("INSAR_SEARCH_ENDPOINT", "https://api.daac.asf.alaska.edu/services/search/param")
	viper.SetDefault("INSAR_SEARCH_PLATFORM", "Sentinel-1")
	viper.SetDefault("INSAR_SEARCH_BEAM_MODE", "IW")
	viper.SetDefault("INSAR_SEARCH_PRODUCT", "SLC")
	viper.SetDefault("INSAR_FETCH_POOL_SIZE", 4)
	viper.SetDefault("INSAR_ORBIT_ENDPOINT", "https://api.daac.asf.alaska.edu/services/search/param")
	viper.SetDefault("INSAR_ORBIT_POOL_SIZE", 4)
	viper.SetDefault("INSAR_DEM_DATASET", "glo_30")
	viper.SetDefault("INSAR_DEM_FALLBACK_DATASET", "nasadem")
	viper.SetDefault("INSAR_DEM_STITCHER_PATH", "/usr/local/bin/dem-stitch")
	viper.SetDefault("INSAR_DEM_BUFFER_DEG", 0.2)
	viper.SetDefault("INSAR_DEM_BUFFER_STEP_DEG", 0.1)
	viper.SetDefault("INSAR_DEM_MAX_ATTEMPTS", 3)
	viper.SetDefault("INSAR_ENGINE_PATH", "/usr/local/bin/topsApp")
	viper.SetDefault("INSAR_ENGINE_TIMEOUT", "6h")
	viper.SetDefault("INSAR_AZIMUTH_LOOKS", 2)
	viper.SetDefault("INSAR_RANGE_LOOKS", 7)
	viper.SetDefault("INSAR_UNWRAPPER", "snaphu")
	viper.SetDefault("INSAR_NETRC_PATH", "")
	viper.SetDefault("INSAR_AUTH_MACHINE", "urs.earthdata.nasa.gov")
	viper.SetDefault("INSAR_METRICS_ENABLED", false)
	viper.SetDefault("INSAR_METRICS_PORT", 9090)

	_ = viper.ReadInConfig()

	cfg := &Config{}
	cfg.Dirs.Work = viper.GetString("INSAR_WORK_DIR")
	cfg.Dirs.Download = viper.GetString("INSAR_DOWNLOAD_DIR")
	cfg.Dirs.Orbit = viper.GetString("INSAR_ORBIT_DIR")
	cfg.Dirs.Dem = viper.GetString("INSAR_DEM_DIR")
	cfg.Search.Endpoint = viper.GetString("INSAR_SEARCH_ENDPOINT")
	cfg.Search.Platform = viper.GetString("INSAR_SEARCH_PLATFORM")
	cfg.Search.BeamMode = viper.GetString("INSAR_SEARCH_BEAM_MODE")
	cfg.Search.Product = viper.GetString("INSAR_SEARCH_PRODUCT")
	cfg.Search.PoolSize = viper.GetInt("INSAR_FETCH_POOL_SIZE")
	cfg.Orbit.Endpoint = viper.GetString("INSAR_ORBIT_ENDPOINT")
	cfg.Orbit.PoolSize = viper.GetInt("INSAR_ORBIT_POOL_SIZE")
	cfg.Dem.Dataset = viper.GetString("INSAR_DEM_DATASET")
	cfg.Dem.FallbackDataset = viper.GetString("INSAR_DEM_FALLBACK_DATASET")
	cfg.Dem.StitcherPath = viper.GetString("INSAR_DEM_STITCHER_PATH")
	cfg.Dem.BufferDeg = viper.GetFloat64("INSAR_DEM_BUFFER_DEG")
	cfg.Dem.BufferStepDeg = viper.GetFloat64("INSAR_DEM_BUFFER_STEP_DEG")
	cfg.Dem.MaxAttempts = viper.GetInt("INSAR_DEM_MAX_ATTEMPTS")
	cfg.Engine.Path = viper.GetString("INSAR_ENGINE_PATH")
	cfg.Engine.Timeout = viper.GetDuration("INSAR_ENGINE_TIMEOUT")
	cfg.Engine.AzimuthLooks = viper.GetInt("INSAR_AZIMUTH_LOOKS")
	cfg.Engine.RangeLooks = viper.GetInt("INSAR_RANGE_LOOKS")
	cfg.Engine.Unwrapper = viper.GetString("INSAR_UNWRAPPER")
	cfg.Auth.NetrcPath = viper.GetString("INSAR_NETRC_PATH")
	cfg.Auth.Machine = viper.GetString("INSAR_AUTH_MACHINE")
	cfg.Metrics.Enabled = viper.GetBool("INSAR_METRICS_ENABLED")
	cfg.Metrics.Port = viper.GetInt("INSAR_METRICS_PORT")

	return cfg, nil
}
