package cluster

import (
	"path/filepath"

	json "github.com/json-iterator/go"
	"github.com/spf13/afero"
)

// Metrics describe the dataset produced by an epoch
type Metrics struct {
	NumTrainingExamples int `json:"num_training_examples"`
	MaxSeqLen           int `json:"max_seq_len"`
	ShardNum            int `json:"shard_num"`
}

// WriteMetrics writes metrics as JSON to path
func WriteMetrics(fs afero.Fs, path string, metrics Metrics) error {
	buf, err := json.Marshal(metrics)
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return afero.WriteFile(fs, path, buf, 0644)
}

// ReadMetrics reads a metrics file written by WriteMetrics
func ReadMetrics(fs afero.Fs, path string) (*Metrics, error) {
	buf, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	metrics := &Metrics{}
	if err := json.Unmarshal(buf, metrics); err != nil {
		return nil, err
	}
	return metrics, nil
}
