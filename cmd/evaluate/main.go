package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/teatak/absa/config"
	"github.com/teatak/absa/dataset"
	"github.com/teatak/absa/internal/logging"
	"github.com/teatak/absa/internal/pipeline"
	"github.com/teatak/absa/tagset"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (optional)")
	inputPath := flag.String("input", "data/test.txt", "Path to the tagged evaluation file")
	modelPath := flag.String("model", "", "Path to model file (overrides config)")
	schema := flag.String("schema", "", "Tagging schema of the input: OT, BIO or BIEOS (overrides config)")
	asJSON := flag.Bool("json", false, "Print the report as JSON")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *modelPath != "" {
		cfg.Data.Model = *modelPath
	}
	if *schema != "" {
		cfg.Data.Schema = *schema
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Must(cfg.Logging.Level, cfg.Logging.Development)
	defer logger.Sync()

	examples, err := dataset.Load(*inputPath, cfg.Schema())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading data: %v\n", err)
		os.Exit(1)
	}
	tg, err := pipeline.LoadTagger(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	report, err := tg.Evaluate(examples)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Evaluation failed: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Printf("Sentences: %d\n", report.Sentences)
	fmt.Printf("Exact:     %s\n", report.Exact)
	fmt.Printf("Boundary:  %s\n", report.Boundary)
	for _, p := range []tagset.Polarity{tagset.Positive, tagset.Negative, tagset.Neutral} {
		fmt.Printf("  %s:     %s\n", p, report.ByPolarity[p])
	}
}
