package cres

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Distance names accepted in configuration files.
const (
	DistanceScaledPt       = "scaled-pt"
	DistanceRelativeDeltaR = "relative-delta-r"
)

// FileConfig is the on-disk form of Options.
type FileConfig struct {
	Observables    ObservableDefinition `yaml:"observables"`
	WeightNorm     float64              `yaml:"weight_norm"`
	MaxCellSize    string               `yaml:"max_cell_size"`
	MaxCellMembers int                  `yaml:"max_cell_members"`
	Search         SearchStrategy       `yaml:"search"`
	Partitions     int                  `yaml:"partitions"`
	Partitioning   PartitionStrategy    `yaml:"partitioning"`
	PtWeight       float64              `yaml:"ptweight"`
	Distance       string               `yaml:"distance"`
	Seeds          SeedStrategy         `yaml:"seeds"`
	Redistribution Redistribution       `yaml:"redistribution"`
	Unweight       UnweightConfig       `yaml:"unweight"`
	Workers        int                  `yaml:"workers"`
}

// UnweightConfig configures the optional unweighting stage.
type UnweightConfig struct {
	MinWeight float64 `yaml:"min_weight"`
	Seed      uint64  `yaml:"seed"`
}

// DefaultFileConfig returns the file form of DefaultOptions.
func DefaultFileConfig() FileConfig {
	opts := DefaultOptions()
	return FileConfig{
		Observables:    opts.Observables,
		WeightNorm:     opts.WeightNorm,
		MaxCellSize:    "inf",
		Search:         opts.Search,
		Partitions:     opts.NumPartitions,
		Partitioning:   opts.Partitioning,
		Distance:       DistanceScaledPt,
		Seeds:          opts.Seeds,
		Redistribution: opts.Redistribution,
	}
}

// LoadConfig reads a YAML configuration file. Keys absent from the file
// keep their default values.
func LoadConfig(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("cres: reading config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML configuration on top of DefaultFileConfig.
func ParseConfig(data []byte) (FileConfig, error) {
	cfg := DefaultFileConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("cres: parsing config: %w", err)
	}
	return cfg, nil
}

// Options converts the file configuration into validated Options with
// defaults applied.
func (c FileConfig) Options() (Options, error) {
	opts := DefaultOptions()
	opts.Observables = c.Observables

	alg, err := ParseJetAlgorithm(string(c.Observables.Jets.Algorithm))
	if err != nil {
		return Options{}, &ConfigError{Field: "Observables.Jets.Algorithm", Reason: err.Error()}
	}
	opts.Observables.Jets.Algorithm = alg
	if c.Observables.LeptonDef != nil {
		lep := *c.Observables.LeptonDef
		if lep.Algorithm, err = ParseJetAlgorithm(string(lep.Algorithm)); err != nil {
			return Options{}, &ConfigError{Field: "Observables.LeptonDef.Algorithm", Reason: err.Error()}
		}
		opts.Observables.LeptonDef = &lep
	}

	if opts.MaxCellSize, err = ParseCellSize(c.MaxCellSize); err != nil {
		return Options{}, &ConfigError{Field: "MaxCellSize", Reason: err.Error()}
	}
	opts.WeightNorm = c.WeightNorm
	opts.MaxCellMembers = c.MaxCellMembers
	opts.Search = c.Search
	opts.NumPartitions = c.Partitions
	opts.Partitioning = c.Partitioning
	opts.PtWeight = c.PtWeight
	opts.Seeds = c.Seeds
	opts.Redistribution = c.Redistribution
	opts.UnweightMinWeight = c.Unweight.MinWeight
	opts.UnweightSeed = c.Unweight.Seed
	opts.Workers = c.Workers

	switch c.Distance {
	case DistanceScaledPt, "":
	case DistanceRelativeDeltaR:
		opts.Distance = NewRelativeDeltaRMetric()
	default:
		return Options{}, &ConfigError{Field: "Distance", Reason: fmt.Sprintf("unknown distance %q", c.Distance)}
	}

	applyDefaults(&opts)
	if err := validateOptions(&opts); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// ParseCellSize parses a cell radius. The empty string and the spellings
// "inf", ".inf", "infinity" and "unbounded" mean no limit.
func ParseCellSize(s string) (float64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch strings.TrimPrefix(strings.TrimPrefix(s, "+"), ".") {
	case "", "inf", "infinity", "unbounded":
		return math.Inf(1), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cell size %q", s)
	}
	if !(v > 0) {
		return 0, fmt.Errorf("cell size must be > 0, got %g", v)
	}
	return v, nil
}
