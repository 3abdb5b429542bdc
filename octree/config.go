package octree

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Config describes the grid a Context is built for. Zero fields take their defaults.
type Config struct {
	// MaxNumLevels is the number of tree levels including the root, at most MaxNumLevels.
	MaxNumLevels int `json:"max_num_levels"`
	// Scale is the real world side length of the root node. Coordinates are expected in [0, Scale).
	Scale     float64 `json:"scale"`
	Tolerance float64 `json:"tolerance"`
}

// NewConfigFromAttributes decodes a config from a generic attribute map, such as parsed JSON.
func NewConfigFromAttributes(attrs map[string]interface{}) (Config, error) {
	var conf Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      &conf,
		ErrorUnused: true,
	})
	if err != nil {
		return Config{}, errors.Wrap(err, "error creating decoder for octree config")
	}
	if err := decoder.Decode(attrs); err != nil {
		return Config{}, errors.Wrap(err, "error decoding octree config")
	}
	return conf, nil
}

// WithDefaults returns a copy of the config with zero fields replaced by their defaults.
func (conf Config) WithDefaults() Config {
	if conf.MaxNumLevels == 0 {
		conf.MaxNumLevels = DefaultMaxNumLevels
	}
	if conf.Scale == 0 {
		conf.Scale = DefaultScale
	}
	if conf.Tolerance == 0 {
		conf.Tolerance = DefaultTolerance
	}
	return conf
}

// Validate reports every problem with the config.
func (conf Config) Validate() error {
	var errs error
	if conf.MaxNumLevels < 0 || conf.MaxNumLevels == 1 || conf.MaxNumLevels > MaxNumLevels {
		errs = multierr.Append(errs, errors.Errorf("max_num_levels must be between 2 and %d, got %d", MaxNumLevels, conf.MaxNumLevels))
	}
	if conf.Scale < 0 {
		errs = multierr.Append(errs, errors.Errorf("scale must be positive, got %g", conf.Scale))
	}
	if conf.Tolerance < 0 {
		errs = multierr.Append(errs, errors.Errorf("tolerance must not be negative, got %g", conf.Tolerance))
	}
	return errs
}
