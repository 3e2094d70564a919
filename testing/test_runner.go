package testing

import (
	"context"
	"fmt"
	"time"

	"github.com/go-sif/tablegen"
	"github.com/go-sif/tablegen/cluster"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// LocalRunEpoch runs a single epoch over every Example in store on a localhost test cluster
// with a certain number of in-process workers. Shards and metrics are written to fs under epochPath.
func LocalRunEpoch(ctx context.Context, store tablegen.TableStore, factory tablegen.InstanceBuilderFactory, opts *cluster.NodeOptions, numWorkers int, fs afero.Fs, epochPath string) (*cluster.EpochResult, error) {
	opts = cluster.CloneNodeOptions(opts)
	// configure coordinator on ephemeral ports
	opts.InstanceAddr = "127.0.0.1:0"
	opts.StatusAddr = "127.0.0.1:0"
	opts.NumWorkers = numWorkers
	if opts.WorkerJoinTimeout == 0 {
		opts.WorkerJoinTimeout = time.Duration(5) * time.Second
	}
	if opts.RPCTimeout == 0 {
		opts.RPCTimeout = time.Duration(5) * time.Second
	}
	logger := zap.NewNop()
	launcher := &cluster.LocalLauncher{Store: store, Factory: factory, Fs: fs, Logger: logger}
	coordinator, err := cluster.CreateCoordinator(opts, launcher, fs, logger)
	if err != nil {
		return nil, err
	}
	indices := make([]int, store.Len())
	for i := range indices {
		indices[i] = i
	}
	return coordinator.RunEpoch(ctx, &cluster.EpochSpec{
		EpochPath:   epochPath,
		MetricsPath: fmt.Sprintf("%s.metrics.json", epochPath),
		Indices:     indices,
	})
}
