package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jaylann/wac2j/chatlog"
	"github.com/jaylann/wac2j/moderation"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if cfg.PrintSchema {
		if err := printSchema(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		return
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var mod moderation.Moderator
	if !cfg.NoMod {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			fmt.Fprintln(os.Stderr, "missing OPENAI_API_KEY (pass -api-key, or use -no-mod)")
			os.Exit(2)
		}
		client, err := moderation.NewClient(apiKey, cfg.Threshold)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(2)
		}
		mod = client
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.InputDir != "" {
		if err := processDirectory(ctx, cfg, mod, logger); err != nil {
			logger.Error("directory processing finished with failures", "error", err)
			os.Exit(1)
		}
		return
	}

	outPath := cfg.OutputPath
	if outPath == "" {
		outPath = replaceExt(cfg.InputPath, ".jsonl")
	}
	if _, err := processFile(ctx, cfg, mod, cfg.InputPath, outPath, logger); err != nil {
		logger.Error("processing failed", "file", cfg.InputPath, "error", err)
		os.Exit(1)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.SystemPrompt, "sys-prompt", cfg.SystemPrompt, "System prompt prepended to every conversation")
	fs.StringVar(&cfg.AssistantName, "name", cfg.AssistantName, "Name of the assistant in the chat log")
	fs.Float64Var(&cfg.Threshold, "threshold", cfg.Threshold, "Moderation threshold in [0,1]; a message is dropped when any category scores above it")
	fs.IntVar(&cfg.MaxChars, "max-chars", cfg.MaxChars, "Character budget per conversation")
	fs.BoolVar(&cfg.Pairs, "pairs", cfg.Pairs, "Collapse each conversation to a single user/assistant exchange")
	fs.StringVar(&cfg.OutputPath, "out", "", "Output file path (default: input path with .jsonl extension)")
	fs.StringVar(&cfg.InputDir, "dir", "", "Process every .txt file in this directory instead of a single input")
	fs.BoolVar(&cfg.NoMod, "no-mod", cfg.NoMod, "Skip moderation entirely")
	fs.BoolVar(&cfg.Merge, "merge", cfg.Merge, "Append to the output file instead of overwriting (funnels multiple inputs into one output)")
	fs.StringVar(&cfg.APIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY env var)")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Max in-flight moderation calls")
	fs.StringVar(&cfg.ConfigFile, "config", "", "Optional YAML file providing defaults for the flags above")
	fs.BoolVar(&cfg.PrintSchema, "print-schema", false, "Print the JSON schema of one output record and exit")
	fs.BoolVar(&cfg.Verbose, "v", false, "Enable debug logging")

	// Short aliases matching the long flags above.
	fs.StringVar(&cfg.SystemPrompt, "s", cfg.SystemPrompt, "Shorthand for -sys-prompt")
	fs.StringVar(&cfg.AssistantName, "n", cfg.AssistantName, "Shorthand for -name")
	fs.Float64Var(&cfg.Threshold, "t", cfg.Threshold, "Shorthand for -threshold")
	fs.IntVar(&cfg.MaxChars, "m", cfg.MaxChars, "Shorthand for -max-chars")
	fs.BoolVar(&cfg.Pairs, "p", cfg.Pairs, "Shorthand for -pairs")
	fs.StringVar(&cfg.OutputPath, "o", "", "Shorthand for -out")
	fs.StringVar(&cfg.InputDir, "d", "", "Shorthand for -dir")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags] [input-file]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExample:")
		fmt.Fprintln(fs.Output(), `  wac2j -sys-prompt "You are Bot." -name Bot -no-mod chat.txt`)
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	aliases := map[string]string{
		"s": "sys-prompt", "n": "name", "t": "threshold", "m": "max-chars",
		"p": "pairs", "o": "out", "d": "dir",
	}
	for short, long := range aliases {
		if set[short] {
			set[long] = true
		}
	}

	if cfg.ConfigFile != "" {
		fc, err := loadFileConfig(cfg.ConfigFile)
		if err != nil {
			return Config{}, err
		}
		applyFileDefaults(&cfg, fc, set)
	}

	switch fs.NArg() {
	case 0:
	case 1:
		cfg.InputPath = filepath.Clean(fs.Arg(0))
	default:
		return Config{}, fmt.Errorf("expected at most one input file, got %d", fs.NArg())
	}
	return cfg, nil
}

func printSchema(w *os.File) error {
	schema, err := chatlog.RecordSchema()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(schema)
}

// processDirectory converts every .txt file under cfg.InputDir, writing
// results into an output/ subdirectory. One file's failure is logged and
// skipped; the rest still run.
func processDirectory(ctx context.Context, cfg Config, mod moderation.Moderator, logger *slog.Logger) error {
	entries, err := os.ReadDir(cfg.InputDir)
	if err != nil {
		return fmt.Errorf("read input dir: %w", err)
	}

	var inputs []string
	for _, e := range entries {
		if e.IsDir() || strings.ToLower(filepath.Ext(e.Name())) != ".txt" {
			continue
		}
		inputs = append(inputs, filepath.Join(cfg.InputDir, e.Name()))
	}
	sort.Strings(inputs)
	if len(inputs) == 0 {
		logger.Warn("no .txt files found", "dir", cfg.InputDir)
		return nil
	}

	outDir := filepath.Join(cfg.InputDir, "output")

	start := time.Now()
	failed := 0
	for i, inPath := range inputs {
		outPath := filepath.Join(outDir, replaceExt(filepath.Base(inPath), ".jsonl"))
		if cfg.Merge {
			outPath = filepath.Join(outDir, "output.jsonl")
		}

		written, err := processFile(ctx, cfg, mod, inPath, outPath, logger)
		if err != nil {
			logger.Error("processing failed, continuing with remaining files", "file", inPath, "error", err)
			failed++
		}

		fmt.Fprintf(os.Stderr, "progress wac2j: %d/%d files processed (last=%s convs=%d elapsed=%s)\n",
			i+1, len(inputs), filepath.Base(inPath), written, time.Since(start).Round(time.Second))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(inputs))
	}
	return nil
}

// processFile runs the full pipeline for one input: parse, moderate (unless
// disabled), sort, segment, optionally pair, write. Returns the number of
// conversations written.
func processFile(ctx context.Context, cfg Config, mod moderation.Moderator, inPath, outPath string, logger *slog.Logger) (int, error) {
	msgs, err := chatlog.ParseChatFile(inPath, logger)
	if err != nil {
		return 0, err
	}
	logger.Info("parsed chat file", "file", inPath, "messages", len(msgs))

	if mod != nil {
		before := len(msgs)
		msgs, err = moderation.Filter(ctx, msgs, mod, moderation.FilterOptions{
			Concurrency: cfg.Concurrency,
			Logger:      logger,
		})
		if err != nil {
			return 0, err
		}
		logger.Info("moderation filtered messages", "file", inPath, "removed", before-len(msgs))
	}

	msgs = chatlog.SortByTimestamp(msgs)

	convs, err := chatlog.Segment(msgs, chatlog.SegmentOptions{
		SystemPrompt:  cfg.SystemPrompt,
		AssistantName: cfg.AssistantName,
		MaxChars:      cfg.MaxChars,
		Logger:        logger,
	})
	if err != nil {
		return 0, err
	}

	if cfg.Pairs {
		convs = chatlog.Pair(convs, cfg.SystemPrompt)
	}

	if err := chatlog.WriteConversations(outPath, convs, chatlog.WriteOptions{Append: cfg.Merge}); err != nil {
		return 0, err
	}

	action := "written to"
	if cfg.Merge {
		action = "appended to"
	}
	logger.Info("conversations "+action+" output", "file", outPath, "count", len(convs))
	return len(convs), nil
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
