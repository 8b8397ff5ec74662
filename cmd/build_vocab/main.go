package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/teatak/absa/config"
	"github.com/teatak/absa/dataset"
	"github.com/teatak/absa/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (optional)")
	inputPath := flag.String("input", "", "Path to the tagged corpus file (sentence####w=TAG ...)")
	outputPath := flag.String("output", "", "Path to save the vocabulary (overrides config)")
	schema := flag.String("schema", "", "Tagging schema of the input: OT, BIO or BIEOS (overrides config)")
	minCount := flag.Int("min-count", 1, "Minimum frequency for a word to be kept")
	flag.Parse()

	if *inputPath == "" {
		fmt.Println("Please provide an input file using -input flag")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *outputPath != "" {
		cfg.Data.Vocab = *outputPath
	}
	if *schema != "" {
		cfg.Data.Schema = *schema
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Reading corpus from %s...\n", *inputPath)
	examples, err := dataset.Load(*inputPath, cfg.Schema())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading corpus: %v\n", err)
		os.Exit(1)
	}

	v := pipeline.BuildVocab(cfg, examples, *minCount)
	fmt.Printf("Kept %d unique words. Writing vocabulary...\n", v.Len()-1)

	if err := v.Save(cfg.Data.Vocab); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing vocabulary: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Vocabulary saved to %s\n", cfg.Data.Vocab)
}
