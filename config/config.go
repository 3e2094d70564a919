// Package config holds the configuration of a generation run. A Config is loaded from YAML,
// overridden from the command line, and snapshotted as config.json next to the generated data.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/go-sif/tablegen/builder"
	"github.com/go-sif/tablegen/cluster"
	"github.com/go-sif/tablegen/sampler"
	"github.com/go-sif/tablegen/shard"
	json "github.com/json-iterator/go"
	"github.com/spf13/afero"
	yaml "gopkg.in/yaml.v2"
)

// SnapshotFileName is the name of the configuration snapshot within the output directory
const SnapshotFileName = "config.json"

// snapshotAPI reads snapshots without losing integer precision
var snapshotAPI = json.Config{UseNumber: true}.Froze()

// Config configures a generation run. Fields are declared in the order of their JSON keys,
// which keeps the keys of a snapshot sorted.
type Config struct {
	Compression           string  `yaml:"compression" json:"compression"`
	ContextSampleStrategy string  `yaml:"context_sample_strategy" json:"context_sample_strategy"`
	DoLowerCase           bool    `yaml:"do_lower_case" json:"do_lower_case"`
	EpochsToGenerate      int     `yaml:"epochs_to_generate" json:"epochs_to_generate"`
	ExecWorkers           bool    `yaml:"exec_workers" json:"exec_workers"`
	InstanceAddr          string  `yaml:"instance_addr,omitempty" json:"instance_addr,omitempty"`
	LogLevel              string  `yaml:"log_level" json:"log_level"`
	MaskedLMProbability   float64 `yaml:"masked_lm_prob" json:"masked_lm_prob"`
	MaxContextLength      int     `yaml:"max_context_len" json:"max_context_len"`
	MaxPredictionsPerSeq  int     `yaml:"max_predictions_per_seq" json:"max_predictions_per_seq"`
	MaxSequenceLength     int     `yaml:"max_sequence_len" json:"max_sequence_len"`
	NumWorkers            int     `yaml:"num_workers" json:"num_workers"` // 0 picks one per CPU, less a reserve
	OutputDir             string  `yaml:"output_dir" json:"output_dir"`
	SampleProbability     float64 `yaml:"sample_probability" json:"sample_probability"`
	Seed                  int64   `yaml:"seed" json:"seed"`
	ShardSize             int     `yaml:"shard_size" json:"shard_size"`
	StatusAddr            string  `yaml:"status_addr,omitempty" json:"status_addr,omitempty"`
	StorePath             string  `yaml:"store_path" json:"store_path"`
	TokenizerCacheSize    int     `yaml:"tokenizer_cache_size" json:"tokenizer_cache_size"`
	TrainCorpus           string  `yaml:"train_corpus" json:"train_corpus"`
	UseColumnTypes        bool    `yaml:"use_column_types" json:"use_column_types"`
	UseSampleValues       bool    `yaml:"use_sample_values" json:"use_sample_values"`
	Vocab                 string  `yaml:"vocab" json:"vocab"`
	WorkerReserve         *int    `yaml:"worker_reserve,omitempty" json:"worker_reserve,omitempty"` // unset leaves 2 CPUs free
}

// Default returns a Config populated with default values
func Default() *Config {
	// 0 epochs is a valid request for dev data only, so it is only defaulted here
	c := &Config{
		EpochsToGenerate: 3,
		DoLowerCase:      true,
		UseColumnTypes:   true,
		UseSampleValues:  true,
	}
	c.ensureDefaults()
	return c
}

func (c *Config) ensureDefaults() {
	if c.MaxSequenceLength == 0 {
		c.MaxSequenceLength = 512
	}
	if c.MaxContextLength == 0 {
		c.MaxContextLength = 256
	}
	if c.MaskedLMProbability == 0 {
		c.MaskedLMProbability = 0.15
	}
	if c.MaxPredictionsPerSeq == 0 {
		c.MaxPredictionsPerSeq = 200
	}
	if len(c.ContextSampleStrategy) == 0 {
		c.ContextSampleStrategy = sampler.Nearest
	}
	if c.TokenizerCacheSize == 0 {
		c.TokenizerCacheSize = 100000
	}
	if c.ShardSize == 0 {
		c.ShardSize = 3000000
	}
	if len(c.Compression) == 0 {
		c.Compression = shard.CompressionNone
	}
	if c.SampleProbability == 0 {
		c.SampleProbability = 0.05
	}
	if len(c.LogLevel) == 0 {
		c.LogLevel = "info"
	}
	if len(c.StorePath) == 0 && len(c.OutputDir) > 0 {
		c.StorePath = filepath.Join(c.OutputDir, "tables.db")
	}
}

// Load reads a YAML configuration file on top of the defaults
func Load(fs afero.Fs, path string) (*Config, error) {
	buf, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.UnmarshalStrict(buf, c); err != nil {
		return nil, fmt.Errorf("unable to parse config %s: %w", path, err)
	}
	c.ensureDefaults()
	return c, nil
}

// Validate checks that a Config can be used for a run, before any processing begins
func (c *Config) Validate() error {
	c.ensureDefaults()
	if err := sampler.ValidateStrategy(c.ContextSampleStrategy); err != nil {
		return err
	}
	switch c.Compression {
	case shard.CompressionNone, shard.CompressionLZ4, shard.CompressionZstd:
	default:
		return fmt.Errorf("unsupported compression %q", c.Compression)
	}
	if c.EpochsToGenerate < 0 {
		return fmt.Errorf("epochs_to_generate must not be negative")
	}
	if c.NumWorkers < 0 || (c.WorkerReserve != nil && *c.WorkerReserve < 0) {
		return fmt.Errorf("num_workers and worker_reserve must not be negative")
	}
	if c.MaskedLMProbability < 0 || c.MaskedLMProbability > 1 {
		return fmt.Errorf("masked_lm_prob must be between 0 and 1")
	}
	if c.SampleProbability < 0 || c.SampleProbability > 1 {
		return fmt.Errorf("sample_probability must be between 0 and 1")
	}
	// the builder performs the remaining checks on sequence lengths
	_, err := builder.New(c.BuilderOptions(), nil, nil)
	return err
}

// BuilderOptions returns the options for the InstanceBuilders of a run
func (c *Config) BuilderOptions() builder.Options {
	return builder.Options{
		MaxSequenceLength:    c.MaxSequenceLength,
		MaxContextLength:     c.MaxContextLength,
		MaskedLMProbability:  c.MaskedLMProbability,
		MaxPredictionsPerSeq: c.MaxPredictionsPerSeq,
		UseColumnTypes:       c.UseColumnTypes,
		UseSampleValues:      c.UseSampleValues,
	}
}

// NodeOptions returns the options for the coordinator of a run
func (c *Config) NodeOptions() *cluster.NodeOptions {
	return &cluster.NodeOptions{
		InstanceAddr:           c.InstanceAddr,
		StatusAddr:             c.StatusAddr,
		NumWorkers:             c.NumWorkers,
		WorkerReserve:          c.WorkerReserve,
		ShardSize:              c.ShardSize,
		Compression:            c.Compression,
		ContextSampleStrategy:  c.ContextSampleStrategy,
		MaxContextLength:       c.MaxContextLength,
		DebugSampleProbability: c.SampleProbability,
		Seed:                   c.Seed,
	}
}

// WriteSnapshot writes the Config as indented JSON with sorted keys
func (c *Config) WriteSnapshot(fs afero.Fs, path string) error {
	buf, err := snapshotAPI.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return afero.WriteFile(fs, path, append(buf, '\n'), 0644)
}

// ReadSnapshot reads a Config written by WriteSnapshot
func ReadSnapshot(fs afero.Fs, path string) (*Config, error) {
	buf, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	c := &Config{}
	if err := snapshotAPI.Unmarshal(buf, c); err != nil {
		return nil, fmt.Errorf("unable to parse config snapshot %s: %w", path, err)
	}
	c.ensureDefaults()
	return c, nil
}
