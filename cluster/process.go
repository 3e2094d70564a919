package cluster

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/go-sif/tablegen"
	json "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Launcher starts workers
type Launcher interface {
	Launch(ctx context.Context, spec *WorkerSpec) (Process, error)
}

// Process is a handle on a running worker
type Process interface {
	ID() string
	// Terminate stops the worker without waiting for it to exit
	Terminate() error
	// Wait blocks until the worker exits, returning the reason it exited if it was not terminated
	Wait() error
}

// LocalLauncher runs workers as goroutines within the current process
type LocalLauncher struct {
	Store   tablegen.TableStore
	Factory tablegen.InstanceBuilderFactory
	Fs      afero.Fs
	Logger  *zap.Logger
}

// Launch starts a worker goroutine
func (l *LocalLauncher) Launch(ctx context.Context, spec *WorkerSpec) (Process, error) {
	ctx, cancel := context.WithCancel(ctx)
	p := &localProcess{id: spec.ID, cancel: cancel, done: make(chan struct{})}
	deps := WorkerDeps{Store: l.Store, Factory: l.Factory, Fs: l.Fs, Logger: l.Logger}
	go func() {
		defer close(p.done)
		err := RunWorker(ctx, spec, deps)
		p.lock.Lock()
		defer p.lock.Unlock()
		if !p.terminated {
			p.err = err
		}
	}()
	return p, nil
}

type localProcess struct {
	id         string
	cancel     context.CancelFunc
	done       chan struct{}
	lock       sync.Mutex
	terminated bool
	err        error
}

func (p *localProcess) ID() string {
	return p.id
}

func (p *localProcess) Terminate() error {
	p.lock.Lock()
	p.terminated = true
	p.lock.Unlock()
	p.cancel()
	return nil
}

func (p *localProcess) Wait() error {
	<-p.done
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.err
}

// ExecLauncher runs each worker as a child process of Path, which receives its WorkerSpec as
// JSON on stdin. Child processes open the table store at StorePath themselves.
type ExecLauncher struct {
	Path       string   // executable to run. Defaults to the current executable.
	Args       []string // arguments selecting the worker role
	Env        []string // added to the environment of the current process
	StorePath  string
	ConfigPath string
	Logger     *zap.Logger
}

// Launch starts a worker process
func (l *ExecLauncher) Launch(ctx context.Context, spec *WorkerSpec) (Process, error) {
	path := l.Path
	if len(path) == 0 {
		self, err := os.Executable()
		if err != nil {
			return nil, err
		}
		path = self
	}
	childSpec := *spec
	childSpec.StorePath = l.StorePath
	childSpec.ConfigPath = l.ConfigPath
	buf, err := json.Marshal(&childSpec)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(path, l.Args...)
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}
	cmd.Stdin = bytes.NewReader(buf)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("unable to start worker %s: %w", spec.ID, err)
	}
	l.Logger.Debug("started worker process", zap.String("worker", spec.ID), zap.Int("pid", cmd.Process.Pid))
	p := &execProcess{id: spec.ID, cmd: cmd, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		err := cmd.Wait()
		p.lock.Lock()
		defer p.lock.Unlock()
		if !p.terminated {
			p.err = err
		}
	}()
	go func() {
		// tie the child's lifetime to ctx
		select {
		case <-ctx.Done():
			p.Terminate()
		case <-p.done:
		}
	}()
	return p, nil
}

type execProcess struct {
	id         string
	cmd        *exec.Cmd
	done       chan struct{}
	lock       sync.Mutex
	terminated bool
	err        error
}

func (p *execProcess) ID() string {
	return p.id
}

func (p *execProcess) Terminate() error {
	p.lock.Lock()
	p.terminated = true
	p.lock.Unlock()
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := p.cmd.Process.Kill(); err != nil && err != os.ErrProcessDone {
		return err
	}
	return nil
}

func (p *execProcess) Wait() error {
	<-p.done
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.err
}
