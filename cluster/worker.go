package cluster

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-sif/tablegen"
	"github.com/go-sif/tablegen/errors"
	iutil "github.com/go-sif/tablegen/internal/util"
	"github.com/go-sif/tablegen/logging"
	"github.com/go-sif/tablegen/sampler"
	"github.com/hashicorp/go-multierror"
	json "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// WorkerSpec describes the work assigned to a single worker. It is handed to child worker
// processes as JSON.
type WorkerSpec struct {
	ID                    string        `json:"id"`
	Ordinal               int           `json:"ordinal"`
	Indices               []int         `json:"indices"`
	InstanceAddr          string        `json:"instance_addr"`
	StatusAddr            string        `json:"status_addr"`
	HeartbeatInterval     int           `json:"heartbeat_interval"`
	ContextSampleStrategy string        `json:"context_sample_strategy"`
	MaxContextLength      int           `json:"max_context_length"`
	Seed                  int64         `json:"seed"`
	SamplePath            string        `json:"sample_path,omitempty"`
	SampleProbability     float64       `json:"sample_probability"`
	RPCTimeout            time.Duration `json:"rpc_timeout"`
	JoinRetries           int           `json:"join_retries"`
	// Set by launchers which start separate processes
	StorePath  string `json:"store_path,omitempty"`
	ConfigPath string `json:"config_path,omitempty"`
}

// WorkerDeps are the collaborators of a worker
type WorkerDeps struct {
	Store   tablegen.TableStore
	Factory tablegen.InstanceBuilderFactory
	Fs      afero.Fs // destination of the debug sample file
	Logger  *zap.Logger
}

type worker struct {
	spec       *WorkerSpec
	deps       WorkerDeps
	logger     *zap.Logger
	statusConn *grpc.ClientConn
	status     grpc.ClientStream
}

// RunWorker processes the partition described by spec, pushing Instances to the aggregator and
// reporting progress to the coordinator. After reporting completion it idles until ctx is
// cancelled. Failures to connect or stream are returned; failures of individual Examples are not.
func RunWorker(ctx context.Context, spec *WorkerSpec, deps WorkerDeps) error {
	logger := deps.Logger.With(zap.String("worker", spec.ID), zap.Int("ordinal", spec.Ordinal))
	w := &worker{spec: spec, deps: deps, logger: logger}
	if err := w.run(ctx); err != nil {
		return err
	}
	// idle until torn down by the coordinator
	<-ctx.Done()
	return nil
}

func (w *worker) run(ctx context.Context) error {
	// connect to the coordinator and register before processing begins
	statusConn, err := w.dial(ctx, w.spec.StatusAddr)
	if err != nil {
		return err
	}
	defer statusConn.Close()
	w.statusConn = statusConn
	w.status, err = statusConn.NewStream(ctx, &statusServiceDesc.Streams[0], statusReportMethod)
	if err != nil {
		return fmt.Errorf("unable to open status stream: %w", err)
	}
	if err := w.report(StatusAlive, 0); err != nil {
		return err
	}

	instanceConn, err := w.dial(ctx, w.spec.InstanceAddr)
	if err != nil {
		return err
	}
	defer instanceConn.Close()
	push, err := instanceConn.NewStream(ctx, &instanceServiceDesc.Streams[0], instancePushMethod)
	if err != nil {
		return fmt.Errorf("unable to open instance stream: %w", err)
	}

	client, err := w.deps.Store.Open()
	if err != nil {
		return fmt.Errorf("unable to open table store: %w", err)
	}
	defer client.Close()
	builder, err := w.deps.Factory(w.spec.Ordinal)
	if err != nil {
		return fmt.Errorf("unable to create instance builder: %w", err)
	}
	rng := rand.New(rand.NewSource(w.spec.Seed + int64(w.spec.Ordinal)))
	contextSampler, err := sampler.New(w.spec.ContextSampleStrategy, w.spec.MaxContextLength, rng)
	if err != nil {
		return err
	}
	sink, err := w.openSampleSink()
	if err != nil {
		return err
	}
	if sink != nil {
		defer sink.Close()
	}

	var multierr *multierror.Error
	var payload []byte
	sent, processed, reported := int64(0), 0, 0
	for _, idx := range w.spec.Indices {
		example, err := client.Get(idx)
		if err != nil {
			multierr = multierror.Append(multierr, w.exampleFailed(ctx, idx, nil, err))
			continue
		}
		instances, err := iutil.SafeBuild(builder, example, contextSampler)
		if err != nil {
			multierr = multierror.Append(multierr, w.exampleFailed(ctx, idx, example, err))
			continue
		}
		for _, inst := range instances {
			if sink != nil && rng.Float64() < w.spec.SampleProbability {
				if err := sink.write(inst); err != nil {
					return err
				}
			}
			builder.Strip(inst)
			if payload, err = inst.MarshalMsg(payload[:0]); err != nil {
				return fmt.Errorf("unable to encode instance: %w", err)
			}
			if err := push.SendMsg(&Envelope{Payload: payload}); err != nil {
				return fmt.Errorf("unable to push instance: %w", err)
			}
			sent++
		}
		processed++
		if w.spec.HeartbeatInterval > 0 && processed%w.spec.HeartbeatInterval == 0 {
			if err := w.report(StatusHeartbeat, processed-reported); err != nil {
				return err
			}
			reported = processed
		}
	}

	// the sentinel follows every Instance on the same stream
	if err := push.SendMsg(&Envelope{EndOfStream: true}); err != nil {
		return fmt.Errorf("unable to push end of stream: %w", err)
	}
	if err := push.CloseSend(); err != nil {
		return err
	}
	ack := &Ack{}
	if err := push.RecvMsg(ack); err != nil {
		return fmt.Errorf("aggregator did not acknowledge instances: %w", err)
	}
	if ack.Count != sent+1 {
		return fmt.Errorf("aggregator acknowledged %d messages, %d were sent", ack.Count, sent+1)
	}

	if err := w.report(StatusDone, processed-reported); err != nil {
		return err
	}
	if err := w.status.CloseSend(); err != nil {
		return err
	}
	if err := w.status.RecvMsg(&Ack{}); err != nil {
		return fmt.Errorf("coordinator did not acknowledge status: %w", err)
	}
	if multierr != nil {
		multierr.ErrorFormat = iutil.FormatMultiError
		w.logger.Warn("finished partition with failed examples", zap.Int("failed", len(multierr.Errors)), zap.Int("processed", processed))
		w.logger.Debug("failed examples", zap.String("errors", multierr.Error()))
	} else {
		w.logger.Info("finished partition", zap.Int("processed", processed), zap.Int64("instances", sent))
	}
	return nil
}

// dial connects to a coordinator service, retrying at one second intervals
func (w *worker) dial(ctx context.Context, addr string) (*grpc.ClientConn, error) {
	var lastErr error
	for retries := 0; retries <= w.spec.JoinRetries; retries++ {
		dialCtx, cancel := context.WithTimeout(ctx, w.spec.RPCTimeout)
		conn, err := grpc.DialContext(dialCtx, addr, grpc.WithInsecure(), grpc.WithBlock(), callOptions())
		cancel()
		if err == nil {
			return conn, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			// Wait 1 second and try again
		}
	}
	return nil, fmt.Errorf("unable to dial %s: %w", addr, lastErr)
}

func (w *worker) report(kind StatusKind, count int) error {
	if err := w.status.SendMsg(&StatusMsg{Kind: kind, WorkerID: w.spec.ID, Count: count}); err != nil {
		return fmt.Errorf("unable to report %s: %w", kind, err)
	}
	return nil
}

// exampleFailed logs the failure of a single Example to the coordinator's log service
func (w *worker) exampleFailed(ctx context.Context, idx int, example *tablegen.Example, err error) error {
	msg := fmt.Sprintf("Unable to build instances for example %d: %+v", idx, err)
	if example != nil {
		msg = fmt.Sprintf("%s\nExample: %s", msg, example.Serialize())
	}
	w.logger.Error("example failed", zap.Int("index", idx), zap.Error(err))
	if logErr := w.remoteLog(ctx, logging.ErrorLevel, msg); logErr != nil {
		w.logger.Warn("unable to send diagnostic to coordinator", zap.Error(logErr))
	}
	return errors.ExampleError{Index: idx, Err: err}
}

func (w *worker) remoteLog(ctx context.Context, level int, msg string) error {
	ctx, cancel := context.WithTimeout(ctx, w.spec.RPCTimeout)
	defer cancel()
	stream, err := w.statusConn.NewStream(ctx, &logServiceDesc.Streams[0], logMethod)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&LogMsg{Level: level, Source: w.spec.ID, Message: msg}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	return stream.RecvMsg(&Ack{})
}

// sampleSink writes Instances as JSON lines, for inspection
type sampleSink struct {
	f afero.File
}

func (w *worker) openSampleSink() (*sampleSink, error) {
	if len(w.spec.SamplePath) == 0 {
		return nil, nil
	}
	f, err := w.deps.Fs.Create(w.spec.SamplePath)
	if err != nil {
		return nil, fmt.Errorf("unable to create sample file: %w", err)
	}
	return &sampleSink{f: f}, nil
}

func (s *sampleSink) write(inst *tablegen.Instance) error {
	buf, err := json.Marshal(inst)
	if err != nil {
		return err
	}
	_, err = s.f.Write(append(buf, '\n'))
	return err
}

func (s *sampleSink) Close() error {
	return s.f.Close()
}
