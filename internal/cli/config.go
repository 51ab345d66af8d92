package cli

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/matzehuels/parcelgrid/internal/server"
	"github.com/matzehuels/parcelgrid/pkg/classify"
	"github.com/matzehuels/parcelgrid/pkg/errors"
	"github.com/matzehuels/parcelgrid/pkg/pipeline"
)

// defaultConfigFile is read from the working directory when --config is
// not given. A missing default file is not an error.
const defaultConfigFile = appName + ".toml"

// Config is the TOML configuration file.
//
//	document = "plotsData.json"
//
//	[pipeline]
//	reference_latitude = 43.174
//	target_width_meters = 30
//	target_height_meters = 40
//
//	[pipeline.policy]
//	statuses = ["продан"]
//
//	[server]
//	addr = ":8090"
//	static_dir = "site"
type Config struct {
	Document string           `toml:"document"`
	Pipeline pipeline.Options `toml:"pipeline"`
	Server   server.Config    `toml:"server"`
}

// defaultConfig returns the configuration used when no file sets a value.
// The classification policy starts from the stock table so that a file
// overriding only the statuses keeps the keyword rules.
func defaultConfig() Config {
	var cfg Config
	cfg.Pipeline.Policy = classify.DefaultPolicy()
	return cfg
}

// loadConfig reads path. With explicit false a missing file yields the
// defaults; with explicit true it is an error. Unknown keys are rejected so
// that typos do not silently fall back to defaults.
func loadConfig(path string, explicit bool) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.New(errors.ErrCodeInvalidConfig, "config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// config loads the file named by --config, or the default file.
func (c *CLI) config() (Config, error) {
	if c.configPath != "" {
		return loadConfig(c.configPath, true)
	}
	return loadConfig(defaultConfigFile, false)
}

// =============================================================================
// Pipeline Flags
// =============================================================================

// pipelineFlags are the pipeline options settable on the command line. A
// flag overrides the config file only when it was given explicitly.
type pipelineFlags struct {
	latitude  float64
	width     float64
	height    float64
	gap       float64
	tolerance float64
	areaMin   float64
	areaMax   float64
	statuses  []string
}

func (f *pipelineFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.latitude, "latitude", pipeline.DefaultReferenceLatitude, "reference latitude for the meters-per-degree conversion")
	cmd.Flags().Float64Var(&f.width, "width", pipeline.DefaultTargetWidthMeters, "lot width in meters (east-west)")
	cmd.Flags().Float64Var(&f.height, "height", pipeline.DefaultTargetHeightMeters, "lot height in meters (north-south)")
	cmd.Flags().Float64Var(&f.gap, "gap", pipeline.DefaultGapMeters, "spacing between lots in a row, in meters")
	cmd.Flags().Float64Var(&f.tolerance, "row-tolerance", pipeline.DefaultRowTolerance, "row clustering tolerance in degrees of latitude")
	cmd.Flags().Float64Var(&f.areaMin, "area-min", classify.DefaultAreaMin, "smallest standard lot area in m²")
	cmd.Flags().Float64Var(&f.areaMax, "area-max", classify.DefaultAreaMax, "largest standard lot area in m²")
	cmd.Flags().StringSliceVar(&f.statuses, "special-status", nil, "status substring that marks a parcel special (repeatable)")
}

func (f *pipelineFlags) apply(cmd *cobra.Command, opts *pipeline.Options) {
	set := cmd.Flags().Changed
	if set("latitude") {
		opts.ReferenceLatitude = pipeline.Latitude(f.latitude)
	}
	if set("width") {
		opts.TargetWidthMeters = f.width
	}
	if set("height") {
		opts.TargetHeightMeters = f.height
	}
	if set("gap") {
		opts.GapMeters = f.gap
	}
	if set("row-tolerance") {
		opts.RowTolerance = f.tolerance
	}
	if set("area-min") {
		opts.Policy.Band.Min = f.areaMin
	}
	if set("area-max") {
		opts.Policy.Band.Max = f.areaMax
	}
	if set("special-status") {
		opts.Policy.Statuses = append(opts.Policy.Statuses, f.statuses...)
	}
}

// options loads the config file and applies the command's flags to its
// pipeline section.
func (c *CLI) options(cmd *cobra.Command, flags *pipelineFlags) (Config, pipeline.Options, error) {
	cfg, err := c.config()
	if err != nil {
		return Config{}, pipeline.Options{}, err
	}
	opts := cfg.Pipeline
	flags.apply(cmd, &opts)
	opts.Logger = c.Logger
	return cfg, opts, nil
}
