// charlm trains a character-level language model on a text corpus and
// prints text generated from it.
//
// Usage:
//
//	charlm [flags] <windowLength> <initialText> <generatedTextLength> <mode> <fileName>
//
// A mode of "random" seeds the generator from the runtime entropy source;
// any other value uses the fixed seed (20 unless configured), so identical
// inputs produce identical output.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/joelsearcy/charlm-go/pkg/config"
	"github.com/joelsearcy/charlm-go/pkg/data"
	"github.com/joelsearcy/charlm-go/pkg/model"
	"github.com/joelsearcy/charlm-go/pkg/tokenizer"
)

// version is set via -ldflags at build time
var version = "dev"

// randomMode is the mode token that selects an entropy-seeded generator
const randomMode = "random"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options holds the parsed command line
type options struct {
	windowLength int
	initialText  string
	textLength   int
	random       bool
	fileName     string

	configPath string
	logLevel   string
	dump       bool
	cpuProfile string
	memProfile string
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	var showVersion bool

	flagSet := pflag.NewFlagSet("charlm", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.configPath, "config", "", "path to a YAML or JSONC config file (default: $"+config.EnvVar+")")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	flagSet.BoolVar(&opts.dump, "dump", false, "print the trained model before the generated text")
	flagSet.StringVar(&opts.cpuProfile, "cpuprofile", "", "write a CPU profile to this file")
	flagSet.StringVar(&opts.memProfile, "memprofile", "", "write a heap profile to this file")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")
	flagSet.Usage = func() { printUsage(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "charlm: %v\n", err)
		return 2
	}
	if showVersion {
		fmt.Fprintf(stdout, "charlm %s\n", version)
		return 0
	}

	if err := parsePositional(flagSet.Args(), &opts); err != nil {
		fmt.Fprintf(stderr, "charlm: %v\n", err)
		printUsage(stderr, flagSet)
		return 2
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "charlm: %v\n", err)
		return 1
	}
	logger, err := newLogger(stderr, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "charlm: %v\n", err)
		return 1
	}

	stopProfile, err := startCPUProfile(opts.cpuProfile)
	if err != nil {
		fmt.Fprintf(stderr, "charlm: %v\n", err)
		return 1
	}
	err = generate(context.Background(), logger, cfg, opts, stdout)
	stopProfile()
	if err != nil {
		fmt.Fprintf(stderr, "charlm: %v\n", err)
		if errors.Is(err, model.ErrInvalidWindowLength) {
			return 2
		}
		return 1
	}

	if err := writeHeapProfile(opts.memProfile); err != nil {
		fmt.Fprintf(stderr, "charlm: %v\n", err)
		return 1
	}
	return 0
}

func parsePositional(args []string, opts *options) error {
	if len(args) != 5 {
		return fmt.Errorf("expected 5 arguments, got %d", len(args))
	}
	windowLength, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("windowLength: %w", err)
	}
	textLength, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("generatedTextLength: %w", err)
	}
	opts.windowLength = windowLength
	opts.initialText = args[1]
	opts.textLength = textLength
	opts.random = args[3] == randomMode
	opts.fileName = args[4]
	return nil
}

func loadConfig(opts options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
		if _, err := cfg.Level(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// generate trains a fresh model on the corpus and writes the generated text
func generate(ctx context.Context, logger *slog.Logger, cfg *config.Config, opts options, stdout io.Writer) error {
	var lm *model.Model
	var err error
	if opts.random {
		lm, err = model.NewRandom(opts.windowLength)
	} else {
		lm, err = model.NewSeeded(opts.windowLength, cfg.Seed)
	}
	if err != nil {
		return err
	}

	if cfg.Corpus.URL != "" {
		if err := fetchCorpus(ctx, logger, cfg, opts.fileName); err != nil {
			return err
		}
	}

	if err := train(logger, lm, opts.fileName); err != nil {
		return err
	}

	if opts.dump {
		if _, err := lm.WriteTo(stdout); err != nil {
			return fmt.Errorf("writing model: %w", err)
		}
	}

	gen, err := lm.Extend(opts.initialText, opts.textLength)
	if err != nil {
		return err
	}
	logger.Info("generated text",
		"requested", opts.textLength,
		"produced", tokenizer.RuneLen(gen.Text),
		"unseen_window", gen.UnseenWindow,
	)
	_, err = fmt.Fprintln(stdout, gen.Text)
	return err
}

func fetchCorpus(ctx context.Context, logger *slog.Logger, cfg *config.Config, path string) error {
	timeout, err := cfg.DownloadTimeout()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	downloaded, err := data.DownloadIfNotExists(ctx, cfg.Corpus.URL, path)
	if err != nil {
		return err
	}
	if downloaded {
		logger.Info("downloaded corpus", "url", cfg.Corpus.URL, "path", path)
	}
	return nil
}

func train(logger *slog.Logger, lm *model.Model, path string) error {
	corpus, err := data.Open(path)
	if err != nil {
		return err
	}
	defer corpus.Close()
	logger.Debug("opened corpus", "path", path, "format", corpus.Format())

	if err := lm.Train(corpus); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	lm.Finalize()

	stats := lm.Stats()
	logger.Info("trained model",
		"window_length", lm.WindowLength(),
		"windows", stats.Windows,
		"records", stats.Records,
		"observations", stats.Observations,
		"vocabulary", stats.Vocabulary,
		"alphabet", stats.Alphabet,
		"corpus_runes", corpus.Runes(),
		"corpus_blake3", corpus.Fingerprint(),
	)
	return nil
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `charlm trains a character-level language model and generates text from it.

Usage:
  charlm [flags] <windowLength> <initialText> <generatedTextLength> <mode> <fileName>

Arguments:
  windowLength         number of preceding characters used as context (>= 1)
  initialText          seed text; returned unchanged if shorter than windowLength
  generatedTextLength  target length; output may run up to %d characters past it
  mode                 "random" for an entropy seed, anything else for the fixed seed
  fileName             corpus text file (plain, zstd or lz4 compressed)

Flags:
`, model.Overshoot+1)
	fmt.Fprint(w, flagSet.FlagUsages())
}
