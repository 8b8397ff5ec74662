package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/teatak/absa/config"
	"github.com/teatak/absa/dataset"
	"github.com/teatak/absa/internal/logging"
	"github.com/teatak/absa/internal/pipeline"
	"github.com/teatak/absa/util"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (optional)")
	inputPath := flag.String("input", "data/text.txt", "Input file path, one sentence per line")
	outputPath := flag.String("output", "data/tagged.txt", "Output file path (sentence####w=TAG ...)")
	modelPath := flag.String("model", "", "Path to model file (overrides config)")
	batchSize := flag.Int("batch", 64, "Sentences per head call")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *modelPath != "" {
		cfg.Data.Model = *modelPath
	}

	logger := logging.Must(cfg.Logging.Level, cfg.Logging.Development)
	defer logger.Sync()

	// 1. Load tagger
	tg, err := pipeline.LoadTagger(cfg, logger)
	if err != nil {
		logger.Fatal("failed to load tagger", zap.Error(err))
	}

	// 2. Open Files
	inFile, err := os.Open(*inputPath)
	if err != nil {
		logger.Fatal("failed to open input file", zap.Error(err))
	}
	defer inFile.Close()

	outFile, err := os.Create(*outputPath)
	if err != nil {
		logger.Fatal("failed to create output file", zap.Error(err))
	}
	defer outFile.Close()
	writer := bufio.NewWriter(outFile)

	// 3. Process
	var batch [][]string
	count := 0
	flush := func() {
		if len(batch) == 0 {
			return
		}
		results, err := tg.TagBatch(batch)
		if err != nil {
			logger.Fatal("tagging failed", zap.Int("line", count), zap.Error(err))
		}
		for _, res := range results {
			line, err := dataset.Format(res.Words, res.Labels)
			if err != nil {
				logger.Fatal("formatting failed", zap.Error(err))
			}
			fmt.Fprintln(writer, line)
		}
		count += len(batch)
		if count%1000 < len(batch) {
			logger.Info("progress", zap.Int("lines", count))
		}
		batch = batch[:0]
	}

	scanner := bufio.NewScanner(inFile)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		batch = append(batch, util.Tokenize(line))
		if len(batch) >= *batchSize {
			flush()
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		logger.Error("error scanning file", zap.Error(err))
	}

	writer.Flush()
	logger.Info("done", zap.Int("lines", count), zap.String("output", *outputPath))
}
