package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/teatak/absa/config"
	"github.com/teatak/absa/dataset"
	"github.com/teatak/absa/head"
	"github.com/teatak/absa/internal/logging"
	"github.com/teatak/absa/internal/pipeline"
	"github.com/teatak/absa/tagger"
	"github.com/teatak/absa/trainer"
	"github.com/teatak/absa/util"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (optional)")
	inputPath := flag.String("input", "data/train.txt", "Path to the tagged training file (sentence####w=TAG ...)")
	devPath := flag.String("dev", "", "Path to a tagged file to evaluate on after training (optional)")
	outputPath := flag.String("output", "", "Path to save the model (overrides config)")
	headKind := flag.String("head", "", "Head: linear, lstm, san or crf (overrides config)")
	schema := flag.String("schema", "", "Tagging schema of the input: OT, BIO or BIEOS (overrides config)")
	epochs := flag.Int("epochs", 0, "Number of training epochs (overrides config)")
	minCount := flag.Int("min-count", 1, "Minimum frequency for a word to enter a newly built vocabulary")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *outputPath != "" {
		cfg.Data.Model = *outputPath
	}
	if *headKind != "" {
		cfg.Head.Kind = *headKind
	}
	if *schema != "" {
		cfg.Data.Schema = *schema
	}
	if *epochs > 0 {
		cfg.Train.Epochs = *epochs
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Must(cfg.Logging.Level, cfg.Logging.Development)
	defer logger.Sync()

	examples, err := dataset.Load(*inputPath, cfg.Schema())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading training data: %v\n", err)
		os.Exit(1)
	}
	st := dataset.Summarize(examples)
	fmt.Printf("Training %s head...\n", cfg.Head.Kind)
	fmt.Printf("Input: %s (%d sentences, %d tokens)\n", *inputPath, st.Sentences, st.Tokens)
	fmt.Printf("Output: %s\n", cfg.Data.Model)
	fmt.Printf("Epochs: %d\n", cfg.Train.Epochs)

	// The vocabulary is built from the training data unless one exists.
	if !util.FileExists(cfg.Data.Vocab) {
		v := pipeline.BuildVocab(cfg, examples, *minCount)
		if err := v.Save(cfg.Data.Vocab); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving vocabulary: %v\n", err)
			os.Exit(1)
		}
		logger.Info("vocabulary built", zap.String("path", cfg.Data.Vocab), zap.Int("words", v.Len()-1))
	}
	v, err := pipeline.LoadVocab(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	enc, err := pipeline.NewEncoder(cfg, v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	h, err := pipeline.NewHead(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tr := trainer.New(cfg.Train, trainer.WithLogger(logger))
	stats, err := tr.Train(ctx, h.(head.Projected), enc, examples)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Training failed: %v\n", err)
		os.Exit(1)
	}
	if len(stats) > 0 {
		last := stats[len(stats)-1]
		fmt.Printf("Epochs run: %d, sentence accuracy %.2f%%, loss %.4f\n", last.Epoch, last.Accuracy*100, last.Loss)
	}

	if err := head.Save(cfg.Data.Model, h); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving model: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Successfully saved model to %s\n", cfg.Data.Model)

	if *devPath == "" {
		return
	}
	dev, err := dataset.Load(*devPath, cfg.Schema())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading dev data: %v\n", err)
		os.Exit(1)
	}
	tg, err := tagger.New(enc, h, tagger.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	report, err := tg.Evaluate(dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Evaluation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Dev exact:    %s\n", report.Exact)
	fmt.Printf("Dev boundary: %s\n", report.Boundary)
}
