// Command tablegen generates sharded masked-LM training data from a corpus of tables.
//
//	tablegen generate --train_corpus 'tables/*.jsonl' --output_dir out --vocab vocab.txt
//
// produces out/config.json, out/dev/epoch_0.* and out/train/epoch_<i>.* for each epoch.
// The worker subcommand is the child process role used with --exec_workers.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	arg "github.com/alexflint/go-arg"
	"github.com/go-sif/tablegen/builder"
	"github.com/go-sif/tablegen/cluster"
	"github.com/go-sif/tablegen/config"
	"github.com/go-sif/tablegen/datasource/jsonl"
	"github.com/go-sif/tablegen/logging"
	"github.com/go-sif/tablegen/store/leveldb"
	"github.com/go-sif/tablegen/tokenizer"
	json "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	maxDevSize = 100000
	// keeps builder random sources apart from the workers' sampler sources
	builderSeedOffset = 1 << 32
)

type generateCmd struct {
	TrainCorpus           string  `arg:"--train_corpus" help:"glob of JSONL table files"`
	OutputDir             string  `arg:"--output_dir" help:"directory receiving config.json, train/ and dev/"`
	Vocab                 string  `arg:"--vocab" help:"WordPiece vocabulary, one token per line"`
	EpochsToGenerate      *int    `arg:"--epochs_to_generate" help:"number of training epochs to generate [default: 3]"`
	Config                string  `arg:"--config" help:"YAML configuration file"`
	NumWorkers            *int    `arg:"--num_workers" help:"number of workers, 0 for one per CPU less --worker_reserve [default: 0]"`
	WorkerReserve         *int    `arg:"--worker_reserve" help:"CPUs left free when --num_workers is 0 [default: 2]"`
	ExecWorkers           bool    `arg:"--exec_workers" help:"run workers as child processes"`
	ContextSampleStrategy string  `arg:"--context_sample_strategy" help:"nearest or concatenate_and_enumerate"`
	MaxSequenceLength     int     `arg:"--max_sequence_len"`
	MaxContextLength      int     `arg:"--max_context_len"`
	MaskedLMProbability   float64 `arg:"--masked_lm_prob"`
	Compression           string  `arg:"--compression" help:"shard compression: none, lz4 or zstd"`
	ShardSize             int     `arg:"--shard_size" help:"instances per shard file"`
	Seed                  *int64  `arg:"--seed"`
	LogLevel              string  `arg:"--log_level"`
}

type workerCmd struct {
	LogLevel string `arg:"--log_level" default:"info"`
}

type args struct {
	Generate *generateCmd `arg:"subcommand:generate" help:"generate training data"`
	Worker   *workerCmd   `arg:"subcommand:worker" help:"run a single worker, reading its assignment from stdin"`
}

func (args) Description() string {
	return "tablegen generates sharded masked-LM training data from tables and their surrounding text"
}

func main() {
	var a args
	p := arg.MustParse(&a)
	var err error
	switch {
	case a.Generate != nil:
		err = generate(a.Generate)
	case a.Worker != nil:
		err = worker(a.Worker)
	default:
		p.Fail("missing subcommand")
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, if any, and applies command line overrides
func (cmd *generateCmd) loadConfig(fs afero.Fs) (*config.Config, error) {
	cfg := config.Default()
	if len(cmd.Config) > 0 {
		var err error
		if cfg, err = config.Load(fs, cmd.Config); err != nil {
			return nil, err
		}
	}
	overrideString(&cfg.TrainCorpus, cmd.TrainCorpus)
	overrideString(&cfg.OutputDir, cmd.OutputDir)
	overrideString(&cfg.Vocab, cmd.Vocab)
	overrideString(&cfg.ContextSampleStrategy, cmd.ContextSampleStrategy)
	overrideString(&cfg.Compression, cmd.Compression)
	overrideString(&cfg.LogLevel, cmd.LogLevel)
	overrideInt(&cfg.MaxSequenceLength, cmd.MaxSequenceLength)
	overrideInt(&cfg.MaxContextLength, cmd.MaxContextLength)
	overrideInt(&cfg.ShardSize, cmd.ShardSize)
	if cmd.EpochsToGenerate != nil {
		cfg.EpochsToGenerate = *cmd.EpochsToGenerate
	}
	if cmd.NumWorkers != nil {
		cfg.NumWorkers = *cmd.NumWorkers
	}
	if cmd.WorkerReserve != nil {
		reserve := *cmd.WorkerReserve
		cfg.WorkerReserve = &reserve
	}
	if cmd.MaskedLMProbability != 0 {
		cfg.MaskedLMProbability = cmd.MaskedLMProbability
	}
	if cmd.Seed != nil {
		cfg.Seed = *cmd.Seed
	}
	if cmd.ExecWorkers {
		cfg.ExecWorkers = true
	}
	if len(cfg.TrainCorpus) == 0 || len(cfg.OutputDir) == 0 || len(cfg.Vocab) == 0 {
		return nil, fmt.Errorf("--train_corpus, --output_dir and --vocab are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideString(dst *string, val string) {
	if len(val) > 0 {
		*dst = val
	}
}

func overrideInt(dst *int, val int) {
	if val != 0 {
		*dst = val
	}
}

func generate(cmd *generateCmd) error {
	fs := afero.NewOsFs()
	cfg, err := cmd.loadConfig(fs)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(cfg.LogLevel).With(zap.String("role", cluster.CoordinatorRole))
	defer logger.Sync()

	// interrupting the run still removes the table database
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vocab, err := tokenizer.LoadVocab(cfg.Vocab)
	if err != nil {
		return err
	}
	store, err := ingest(fs, cfg, vocab, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Remove(); err != nil {
			logger.Warn("unable to remove table database", zap.String("path", store.Path()), zap.Error(err))
		}
	}()
	logger.Info("tables in total", zap.Int("count", store.Len()))

	// generate train and dev split
	n := store.Len()
	indices := rand.New(rand.NewSource(cfg.Seed)).Perm(n)
	devSize := n / 10
	if devSize > maxDevSize {
		devSize = maxDevSize
	}
	trainIndices, devIndices := indices[:n-devSize], indices[n-devSize:]

	snapshotPath := filepath.Join(cfg.OutputDir, config.SnapshotFileName)
	if err := cfg.WriteSnapshot(fs, snapshotPath); err != nil {
		return err
	}
	for _, dir := range []string{"train", "dev"} {
		if err := fs.MkdirAll(filepath.Join(cfg.OutputDir, dir), 0755); err != nil {
			return err
		}
	}

	var launcher cluster.Launcher
	if cfg.ExecWorkers {
		launcher = &cluster.ExecLauncher{
			Args:       []string{cluster.WorkerRole, "--log_level", cfg.LogLevel},
			StorePath:  store.Path(),
			ConfigPath: snapshotPath,
			Logger:     logger,
		}
	} else {
		launcher = &cluster.LocalLauncher{
			Store:   store,
			Factory: builder.NewFactory(cfg.BuilderOptions(), vocab, cfg.Seed+builderSeedOffset),
			Fs:      fs,
			Logger:  logger,
		}
	}
	coordinator, err := cluster.CreateCoordinator(cfg.NodeOptions(), launcher, fs, logger)
	if err != nil {
		return err
	}

	// generate dev data first
	epochs := []*cluster.EpochSpec{createEpochSpec(cfg, "dev", 0, devIndices)}
	for i := 0; i < cfg.EpochsToGenerate; i++ {
		epochs = append(epochs, createEpochSpec(cfg, "train", i, trainIndices))
	}
	for _, spec := range epochs {
		res, err := coordinator.RunEpoch(ctx, spec)
		if err != nil {
			return fmt.Errorf("epoch %s failed: %w", spec.EpochPath, err)
		}
		logger.Info("epoch metrics",
			zap.String("epoch", spec.EpochPath),
			zap.Int("num_training_examples", res.Metrics.NumTrainingExamples),
			zap.Int("shard_num", res.Metrics.ShardNum),
			zap.Float64("examples_per_second", res.Stats.GetExamplesPerSecond()))
	}
	return nil
}

func createEpochSpec(cfg *config.Config, split string, epoch int, indices []int) *cluster.EpochSpec {
	epochPath := filepath.Join(cfg.OutputDir, split, fmt.Sprintf("epoch_%d", epoch))
	spec := &cluster.EpochSpec{
		EpochPath:         epochPath,
		MetricsPath:       epochPath + ".metrics.json",
		Indices:           indices,
		MaxSequenceLength: cfg.MaxSequenceLength,
	}
	if epoch == 0 {
		spec.SamplePath = epochPath + ".sample.json"
	}
	return spec
}

// ingest loads every table of the corpus into a fresh table database
func ingest(fs afero.Fs, cfg *config.Config, vocab *tokenizer.Vocab, logger *zap.Logger) (*leveldb.Store, error) {
	tok, err := tokenizer.New(vocab, cfg.DoLowerCase, cfg.TokenizerCacheSize)
	if err != nil {
		return nil, err
	}
	files, err := jsonl.Glob(cfg.TrainCorpus)
	if err != nil {
		return nil, err
	}
	parser := jsonl.CreateParser(&jsonl.ParserConf{SkipInvalid: true}, tok)
	sources := make([]leveldb.ExampleSource, len(files))
	iterators := make([]*jsonl.FileIterator, len(files))
	for i, path := range files {
		// each file is opened when ingestion reaches it, and closed once drained
		iterators[i] = parser.ParseFile(fs, path)
		sources[i] = iterators[i]
	}
	defer func() {
		for _, it := range iterators {
			it.Close()
		}
	}()
	return leveldb.Ingest(cfg.StorePath, logger, sources...)
}

// worker runs the assignment read from stdin until it is killed by the coordinator
func worker(cmd *workerCmd) error {
	logger := logging.NewLogger(cmd.LogLevel).With(zap.String("role", cluster.WorkerRole))
	defer logger.Sync()
	spec := &cluster.WorkerSpec{}
	if err := json.NewDecoder(os.Stdin).Decode(spec); err != nil {
		return fmt.Errorf("unable to read worker assignment: %w", err)
	}
	fs := afero.NewOsFs()
	cfg, err := config.ReadSnapshot(fs, spec.ConfigPath)
	if err != nil {
		return err
	}
	store, err := leveldb.OpenStore(spec.StorePath)
	if err != nil {
		return err
	}
	vocab, err := tokenizer.LoadVocab(cfg.Vocab)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cluster.RunWorker(ctx, spec, cluster.WorkerDeps{
		Store:   store,
		Factory: builder.NewFactory(cfg.BuilderOptions(), vocab, cfg.Seed+builderSeedOffset),
		Fs:      fs,
		Logger:  logger,
	})
}
