// Package pipeline assembles vocabulary, encoder, head and tagger from a
// config the same way in every command.
package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/teatak/absa/config"
	"github.com/teatak/absa/dataset"
	"github.com/teatak/absa/encoder"
	"github.com/teatak/absa/head"
	"github.com/teatak/absa/tagger"
	"github.com/teatak/absa/util"
	"github.com/teatak/absa/vocab"
)

// LoadVocab loads the configured vocabulary. A missing file gives an empty
// vocabulary, so every token is hashed.
func LoadVocab(cfg *config.Config, logger *zap.Logger) (*vocab.Vocab, error) {
	v := vocab.New()
	if !util.FileExists(cfg.Data.Vocab) {
		logger.Warn("vocabulary not found, hashing every token", zap.String("path", cfg.Data.Vocab))
		return v, nil
	}
	if err := v.Load(cfg.Data.Vocab); err != nil {
		return nil, fmt.Errorf("load vocabulary %s: %w", cfg.Data.Vocab, err)
	}
	logger.Info("vocabulary loaded", zap.String("path", cfg.Data.Vocab), zap.Int("words", v.Len()-1))
	return v, nil
}

// BuildVocab builds a vocabulary from training examples, folding case the
// way the encoder will look tokens up.
func BuildVocab(cfg *config.Config, examples []dataset.Example, minCount int) *vocab.Vocab {
	sentences := dataset.Sentences(examples)
	if !cfg.Encoder.CaseSensitive {
		folded := make([][]string, len(sentences))
		for i, s := range sentences {
			folded[i] = make([]string, len(s))
			for j, w := range s {
				folded[i][j] = util.Normalize(w)
			}
		}
		sentences = folded
	}
	return vocab.Build(sentences, minCount)
}

// NewEncoder builds the hashed encoder over v.
func NewEncoder(cfg *config.Config, v *vocab.Vocab) (*encoder.Hashed, error) {
	return encoder.NewHashed(v, cfg.EncoderOptions()...)
}

// NewHead builds an untrained head of the configured kind.
func NewHead(cfg *config.Config) (head.Head, error) {
	hc, err := cfg.HeadConfig()
	if err != nil {
		return nil, err
	}
	return head.New(hc)
}

// LoadTagger loads vocabulary and model and wires them into a tagger.
func LoadTagger(cfg *config.Config, logger *zap.Logger) (*tagger.Tagger, error) {
	v, err := LoadVocab(cfg, logger)
	if err != nil {
		return nil, err
	}
	enc, err := NewEncoder(cfg, v)
	if err != nil {
		return nil, err
	}
	h, err := head.Load(cfg.Data.Model)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", cfg.Data.Model, err)
	}
	logger.Info("model loaded",
		zap.String("path", cfg.Data.Model),
		zap.Stringer("head", h.Kind()),
		zap.Int("dim", h.Dim()))
	return tagger.New(enc, h, tagger.WithLogger(logger))
}
