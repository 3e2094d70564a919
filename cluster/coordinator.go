package cluster

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-sif/tablegen"
	"github.com/go-sif/tablegen/errors"
	"github.com/go-sif/tablegen/internal/stats"
	"github.com/go-sif/tablegen/shard"
	uuid "github.com/gofrs/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// EpochSpec describes one pass over a set of Examples
type EpochSpec struct {
	EpochPath         string // shards are written to <EpochPath>.shard<N>.bin
	MetricsPath       string
	Indices           []int
	SamplePath        string // if set, the first worker writes sampled Instances here
	MaxSequenceLength int    // recorded in the metrics file
}

// EpochResult is the outcome of a successful epoch
type EpochResult struct {
	Metrics Metrics
	Stats   tablegen.RuntimeStatistics
}

// Coordinator supervises workers and hosts the aggregator for each epoch
type Coordinator struct {
	opts     *NodeOptions
	launcher Launcher
	fs       afero.Fs
	logger   *zap.Logger
}

// CreateCoordinator is a factory for Coordinators. fs receives shards and metrics.
func CreateCoordinator(opts *NodeOptions, launcher Launcher, fs afero.Fs, logger *zap.Logger) (*Coordinator, error) {
	// default certain options if not supplied
	if err := ensureDefaultNodeOptionsValues(opts); err != nil {
		return nil, err
	}
	return &Coordinator{opts: opts, launcher: launcher, fs: fs, logger: logger}, nil
}

type processExit struct {
	id  string
	err error
}

// epoch holds the resources of a running epoch, so that they can be torn down from any exit path
type epoch struct {
	logger       *zap.Logger
	cancel       context.CancelFunc
	servers      []*grpc.Server
	serving      *errgroup.Group
	aggDone      sync.WaitGroup
	statusDone   chan struct{}
	processes    []Process
	exits        chan processExit
	exited       map[string]bool
	compressor   shard.Compressor
	teardownOnce sync.Once
}

// RunEpoch generates the shards for one epoch, blocking until they have all been written
func (c *Coordinator) RunEpoch(ctx context.Context, spec *EpochSpec) (*EpochResult, error) {
	numWorkers := c.opts.numWorkers()
	partitions := Partition(spec.Indices, numWorkers)
	logger := c.logger.With(zap.String("epoch", spec.EpochPath))
	statsTracker := &stats.RunStatistics{}
	statsTracker.Start(numWorkers)
	defer statsTracker.Finish()

	runCtx, cancel := context.WithCancel(ctx)
	e := &epoch{
		logger:     logger,
		cancel:     cancel,
		statusDone: make(chan struct{}),
		exits:      make(chan processExit, numWorkers),
		exited:     make(map[string]bool),
	}
	defer e.teardown()

	// bind first, so that workers can connect as soon as they start
	instanceLis, err := net.Listen("tcp", c.opts.InstanceAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %v", err)
	}
	statusLis, err := net.Listen("tcp", c.opts.StatusAddr)
	if err != nil {
		instanceLis.Close()
		return nil, fmt.Errorf("failed to listen: %v", err)
	}
	e.compressor, err = shard.NewCompressor(c.opts.Compression)
	if err != nil {
		instanceLis.Close()
		statusLis.Close()
		return nil, err
	}
	agg := createAggregator(numWorkers, spec.EpochPath, c.fs, e.compressor, c.opts, logger)
	statuses := make(chan *StatusMsg, numWorkers)

	instanceServer := grpc.NewServer()
	instanceServer.RegisterService(&instanceServiceDesc, agg)
	statusServer := grpc.NewServer()
	statusServer.RegisterService(&statusServiceDesc, createStatusServer(statuses, e.statusDone))
	statusServer.RegisterService(&logServiceDesc, createLogServer(logger))
	e.servers = []*grpc.Server{instanceServer, statusServer}
	e.serving = &errgroup.Group{}
	e.serving.Go(func() error { return instanceServer.Serve(instanceLis) })
	e.serving.Go(func() error { return statusServer.Serve(statusLis) })
	e.aggDone.Add(1)
	go func() {
		defer e.aggDone.Done()
		agg.run(runCtx)
	}()
	logger.Info("starting epoch",
		zap.String("instances", instanceLis.Addr().String()),
		zap.String("status", statusLis.Addr().String()),
		zap.Int("workers", numWorkers),
		zap.String("examples", humanize.Comma(int64(len(spec.Indices)))))

	// start workers
	expected := make(map[string]bool, numWorkers)
	for i, part := range partitions {
		id, err := uuid.NewV4()
		if err != nil {
			return nil, fmt.Errorf("failed to generate UUID: %v", err)
		}
		wspec := &WorkerSpec{
			ID:                    id.String(),
			Ordinal:               i,
			Indices:               part,
			InstanceAddr:          instanceLis.Addr().String(),
			StatusAddr:            statusLis.Addr().String(),
			HeartbeatInterval:     c.opts.HeartbeatInterval,
			ContextSampleStrategy: c.opts.ContextSampleStrategy,
			MaxContextLength:      c.opts.MaxContextLength,
			Seed:                  c.opts.Seed,
			SampleProbability:     c.opts.DebugSampleProbability,
			RPCTimeout:            c.opts.RPCTimeout,
			JoinRetries:           c.opts.WorkerJoinRetries,
		}
		if i == 0 {
			wspec.SamplePath = spec.SamplePath
		}
		p, err := c.launcher.Launch(runCtx, wspec)
		if err != nil {
			return nil, err
		}
		e.processes = append(e.processes, p)
		expected[p.ID()] = true
		go func(p Process) {
			e.exits <- processExit{id: p.ID(), err: p.Wait()}
		}(p)
	}

	result, err := c.superviseWorkers(ctx, e, expected, statuses, agg.results, statsTracker)
	if err != nil {
		return nil, err
	}
	statsTracker.EndProcessing()

	// every sentinel precedes its worker's Done, so the aggregator is finishing
	if result == nil {
		select {
		case r := <-agg.results:
			result = &r
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e.aggDone.Wait()
	statsTracker.EndAggregation()
	if result.Err != nil {
		return nil, fmt.Errorf("aggregator failed: %w", result.Err)
	}
	e.teardown()

	metrics := Metrics{
		NumTrainingExamples: result.NumInstances,
		MaxSeqLen:           spec.MaxSequenceLength,
		ShardNum:            result.NumShards,
	}
	if err := WriteMetrics(c.fs, spec.MetricsPath, metrics); err != nil {
		return nil, err
	}
	statsTracker.Finish()
	logger.Info("finished epoch",
		zap.String("instances", humanize.Comma(int64(result.NumInstances))),
		zap.Int("shards", result.NumShards),
		zap.Duration("runtime", statsTracker.GetRuntime()))
	return &EpochResult{Metrics: metrics, Stats: statsTracker}, nil
}

// superviseWorkers consumes the status stream until every worker has reported completion. It
// returns the aggregator's result if the aggregator stopped in the meantime.
func (c *Coordinator) superviseWorkers(ctx context.Context, e *epoch, expected map[string]bool, statuses <-chan *StatusMsg, results <-chan AggregatorResult, statsTracker *stats.RunStatistics) (*AggregatorResult, error) {
	var result *AggregatorResult
	numWorkers := len(expected)
	alive := make(map[string]bool, numWorkers)
	done := make(map[string]bool, numWorkers)
	joinTimer := time.NewTimer(c.opts.WorkerJoinTimeout)
	defer joinTimer.Stop()
	joined := joinTimer.C
	progress := time.NewTicker(c.opts.ProgressLogInterval)
	defer progress.Stop()

	e.logger.Info("waiting for workers to connect", zap.Int("workers", numWorkers))
	for len(done) < numWorkers {
		select {
		case msg := <-statuses:
			if !expected[msg.WorkerID] {
				e.logger.Warn("ignoring status from unknown worker", zap.String("worker", msg.WorkerID))
				continue
			}
			switch msg.Kind {
			case StatusAlive:
				alive[msg.WorkerID] = true
				if len(alive) == numWorkers {
					joined = nil
					statsTracker.EndJoin()
					e.logger.Info("all workers connected", zap.Duration("after", statsTracker.GetJoinRuntime()))
				}
			case StatusHeartbeat:
				statsTracker.AddExamplesProcessed(msg.Count)
			case StatusDone:
				if !done[msg.WorkerID] {
					done[msg.WorkerID] = true
					statsTracker.AddExamplesProcessed(msg.Count)
					statsTracker.WorkerFinished()
				}
			}
		case exit := <-e.exits:
			e.exited[exit.id] = true
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !done[exit.id] {
				return nil, errors.WorkerExitError{ID: exit.id, Err: exit.err}
			}
		case <-joined:
			return nil, fmt.Errorf("only %d of %d workers registered within %s", len(alive), numWorkers, c.opts.WorkerJoinTimeout)
		case <-progress.C:
			e.logger.Info("progress",
				zap.String("examples", humanize.Comma(statsTracker.GetNumExamplesProcessed())),
				zap.String("rate", humanize.FormatFloat("#,###.##", statsTracker.GetRecentExamplesPerSecond())+"/s"),
				zap.Int("finished", statsTracker.GetNumWorkersFinished()))
		case r := <-results:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if r.Err != nil {
				return nil, fmt.Errorf("aggregator failed: %w", r.Err)
			}
			result = &r
			results = nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e.logger.Info("all workers finished", zap.String("examples", humanize.Comma(statsTracker.GetNumExamplesProcessed())))
	return result, nil
}

// teardown stops the aggregator, every worker and the servers. It is safe to call more than once.
func (e *epoch) teardown() {
	e.teardownOnce.Do(func() {
		e.cancel()
		e.aggDone.Wait()
		for _, p := range e.processes {
			if err := p.Terminate(); err != nil {
				e.logger.Warn("unable to terminate worker", zap.String("worker", p.ID()), zap.Error(err))
			}
		}
		for len(e.exited) < len(e.processes) {
			exit := <-e.exits
			e.exited[exit.id] = true
		}
		close(e.statusDone)
		for _, s := range e.servers {
			s.Stop()
		}
		if e.serving != nil {
			if err := e.serving.Wait(); err != nil {
				e.logger.Warn("server stopped with error", zap.Error(err))
			}
		}
		if e.compressor != nil {
			e.compressor.Close()
		}
	})
}
