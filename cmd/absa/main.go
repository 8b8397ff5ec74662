package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/teatak/absa/config"
	"github.com/teatak/absa/internal/logging"
	"github.com/teatak/absa/internal/pipeline"
	"github.com/teatak/absa/tagger"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (optional)")
	modelPath := flag.String("model", "", "Path to model file (overrides config)")
	vocabPath := flag.String("vocab", "", "Path to vocabulary file (overrides config)")
	asJSON := flag.Bool("json", false, "Print aspects as JSON")
	unique := flag.Bool("unique", false, "Report each aspect text once")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *modelPath != "" {
		cfg.Data.Model = *modelPath
	}
	if *vocabPath != "" {
		cfg.Data.Vocab = *vocabPath
	}

	logger := logging.Must(cfg.Logging.Level, cfg.Logging.Development)
	defer logger.Sync()

	tg, err := pipeline.LoadTagger(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	process := func(text string) {
		aspects, err := tg.Tag(text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error tagging %q: %v\n", text, err)
			return
		}
		if *unique {
			aspects = tagger.Unique(aspects)
		}
		if *asJSON {
			out, _ := json.Marshal(struct {
				Text    string          `json:"text"`
				Aspects []tagger.Aspect `json:"aspects"`
			}{text, aspects})
			fmt.Println(string(out))
			return
		}
		if len(aspects) == 0 {
			fmt.Println("(no aspects)")
			return
		}
		for _, a := range aspects {
			fmt.Println(a.String())
		}
	}

	// If args provided (non-flag args), tag them
	args := flag.Args()
	if len(args) > 0 {
		process(strings.Join(args, " "))
		return
	}

	// Otherwise interactive mode
	fmt.Fprintln(os.Stderr, "Enter sentences to tag (Ctrl+D to exit):")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		process(text)
	}
}
