// Package config loads pipeline and server settings from an optional TOML
// file overlaid with GWS_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"go.ngs.io/gws-anomaly/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. GWS_BASELINE_START.
const EnvPrefix = "GWS"

// DefaultSoilLayers are the layer variables summed into total soil moisture.
var DefaultSoilLayers = []string{
	"SoilMoi0_10cm_inst",
	"SoilMoi10_40cm_inst",
	"SoilMoi40_100cm_inst",
	"SoilMoi100_200cm_inst",
}

// DefaultComponents are the landsurface storages removed from total water
// storage.
var DefaultComponents = []string{"SWE_inst", "CanopInt_inst", "TotalSoilMoisture_0_200cm"}

// Config holds every setting of the pipeline and the query server.
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Workers     int               `mapstructure:"workers"`
	Reference   ReferenceConfig   `mapstructure:"reference"`
	Gravimetry  GravimetryConfig  `mapstructure:"gravimetry"`
	Landsurface LandsurfaceConfig `mapstructure:"landsurface"`
	Baseline    BaselineConfig    `mapstructure:"baseline"`
	Output      OutputConfig      `mapstructure:"output"`
	Server      ServerConfig      `mapstructure:"server"`

	// Period is the parsed baseline, filled by Load.
	Period domain.BaselinePeriod `mapstructure:"-"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ReferenceConfig locates the landsurface file that defines the target grid.
type ReferenceConfig struct {
	File    string `mapstructure:"file"`
	LatVar  string `mapstructure:"lat_var"`
	LonVar  string `mapstructure:"lon_var"`
	GridCSV string `mapstructure:"grid_csv"`
}

// Roles maps the configured coordinate names. Empty names fall back to
// discovery.
func (r ReferenceConfig) Roles() domain.CoordinateRoles {
	return domain.CoordinateRoles{Lat: r.LatVar, Lon: r.LonVar}
}

type GravimetryConfig struct {
	InputDir     string `mapstructure:"input_dir"`
	ResampledDir string `mapstructure:"resampled_dir"`
	Variable     string `mapstructure:"variable"`
	LatVar       string `mapstructure:"lat_var"`
	LonVar       string `mapstructure:"lon_var"`
	// Rebaseline recomputes the total storage anomaly against the configured
	// baseline instead of trusting the product's own.
	Rebaseline bool `mapstructure:"rebaseline"`
}

func (g GravimetryConfig) Roles() domain.CoordinateRoles {
	return domain.CoordinateRoles{Lat: g.LatVar, Lon: g.LonVar}
}

type LandsurfaceConfig struct {
	ProcessedDir string   `mapstructure:"processed_dir"`
	AlignedDir   string   `mapstructure:"aligned_dir"`
	SoilLayerDir string   `mapstructure:"soil_layer_dir"`
	SoilLayers   []string `mapstructure:"soil_layers"`
	SoilOutput   string   `mapstructure:"soil_output"`
	Components   []string `mapstructure:"components"`
}

type BaselineConfig struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

type OutputConfig struct {
	Dir         string `mapstructure:"dir"`
	FileName    string `mapstructure:"file_name"`
	SplitByYear bool   `mapstructure:"split_by_year"`
	Institution string `mapstructure:"institution"`
}

type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	ProductFile string   `mapstructure:"product_file"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("workers", 4)

	v.SetDefault("reference.file", "")
	v.SetDefault("reference.lat_var", "")
	v.SetDefault("reference.lon_var", "")
	v.SetDefault("reference.grid_csv", "data/reference_grid.csv")

	v.SetDefault("gravimetry.input_dir", "data/grace")
	v.SetDefault("gravimetry.resampled_dir", "data/grace_resampled")
	v.SetDefault("gravimetry.variable", "lwe_thickness")
	v.SetDefault("gravimetry.lat_var", "")
	v.SetDefault("gravimetry.lon_var", "")
	v.SetDefault("gravimetry.rebaseline", false)

	v.SetDefault("landsurface.processed_dir", "data/gldas")
	v.SetDefault("landsurface.aligned_dir", "data/gldas_aligned")
	v.SetDefault("landsurface.soil_layer_dir", "data/gldas_soil")
	v.SetDefault("landsurface.soil_layers", DefaultSoilLayers)
	v.SetDefault("landsurface.soil_output", "data/gldas/gldas_total_soil_moisture_0_200cm.nc")
	v.SetDefault("landsurface.components", DefaultComponents)

	v.SetDefault("baseline.start", "2004-01-01")
	v.SetDefault("baseline.end", "2009-12-31")

	v.SetDefault("output.dir", "output")
	v.SetDefault("output.file_name", "groundwater_anomaly")
	v.SetDefault("output.split_by_year", false)
	v.SetDefault("output.institution", "")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.product_file", "output/groundwater_anomaly.nc")
	v.SetDefault("server.cors_origins", []string{})
}

// NewViper returns a viper instance with defaults and environment overrides
// wired. A non-empty configFile is read as TOML.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("problem reading configuration file %s: %w", configFile, err)
		}
	}
	return v, nil
}

// Load unmarshals v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	// Comma separated env values arrive as a single element.
	cfg.Landsurface.SoilLayers = splitList(cfg.Landsurface.SoilLayers)
	cfg.Landsurface.Components = splitList(cfg.Landsurface.Components)
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Output.Dir == "" {
		return errors.New("output.dir is required")
	}
	if c.Output.FileName == "" {
		return errors.New("output.file_name is required")
	}
	if c.Gravimetry.Variable == "" {
		return errors.New("gravimetry.variable is required")
	}

	start, err := ParseDate(c.Baseline.Start)
	if err != nil {
		return fmt.Errorf("baseline.start: %w", err)
	}
	end, err := ParseDate(c.Baseline.End)
	if err != nil {
		return fmt.Errorf("baseline.end: %w", err)
	}
	// An end given as a bare date covers that whole day.
	if !strings.Contains(c.Baseline.End, "T") {
		end = end.Add(24*time.Hour - time.Second)
	}
	period, err := domain.NewBaselinePeriod(start, end)
	if err != nil {
		return err
	}
	c.Period = period
	return nil
}

// ParseDate accepts RFC 3339 timestamps or plain 2006-01-02 dates.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected RFC3339 or YYYY-MM-DD)", s)
	}
	return t, nil
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
