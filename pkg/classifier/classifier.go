// Package classifier implements the trainable line classifier: a
// multinomial naive Bayes model over the feature space in pkg/features,
// fronted by the deterministic heuristics in pkg/rules.
package classifier

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"recipe-lab/models"
	"recipe-lab/pkg/features"
	"recipe-lab/pkg/rules"
)

// FormatVersion is bumped whenever the serialized layout changes. Load
// refuses payloads written by a different version.
const FormatVersion = 1

const alpha = 1.0

// Model is a trained line classifier. All counts are kept as float64 so the
// scoring path avoids conversions.
type Model struct {
	Version       int                                  `json:"version"`
	TrainedAt     time.Time                            `json:"trainedAt"`
	TrainRows     int                                  `json:"trainRows"`
	LabelCounts   map[models.Label]float64             `json:"labelCounts"`
	FeatureCounts map[models.Label]map[string]float64  `json:"featureCounts"`
	TotalCounts   map[models.Label]float64             `json:"totalCounts"`
	Vocabulary    map[string]struct{}                  `json:"-"`
}

// Train fits a model on labeled rows. It never fails on content; an empty
// training set yields a model that predicts from priors alone.
func Train(rows []models.LineRow) *Model {
	m := &Model{
		Version:       FormatVersion,
		TrainedAt:     time.Now().UTC(),
		TrainRows:     len(rows),
		LabelCounts:   make(map[models.Label]float64),
		FeatureCounts: make(map[models.Label]map[string]float64),
		TotalCounts:   make(map[models.Label]float64),
		Vocabulary:    make(map[string]struct{}),
	}
	for _, label := range models.Labels {
		m.FeatureCounts[label] = make(map[string]float64)
	}
	for _, row := range rows {
		feats := features.Extract(row.Text)
		m.LabelCounts[row.Label]++
		bucket := m.FeatureCounts[row.Label]
		if bucket == nil {
			bucket = make(map[string]float64)
			m.FeatureCounts[row.Label] = bucket
		}
		for feat, count := range feats {
			bucket[feat] += float64(count)
			m.TotalCounts[row.Label] += float64(count)
			m.Vocabulary[feat] = struct{}{}
		}
	}
	return m
}

// Scores returns the softmax posterior over all labels for one line,
// ignoring the rule layer.
func (m *Model) Scores(text string) map[models.Label]float64 {
	feats := features.Extract(text)
	vocabSize := float64(len(m.Vocabulary))
	totalRows := 0.0
	for _, count := range m.LabelCounts {
		totalRows += count
	}

	logScores := make(map[models.Label]float64, len(models.Labels))
	for _, label := range models.Labels {
		prior := (m.LabelCounts[label] + alpha) / (totalRows + alpha*float64(len(models.Labels)))
		score := math.Log(prior)
		denom := m.TotalCounts[label] + alpha*vocabSize
		for feat, count := range feats {
			if _, known := m.Vocabulary[feat]; !known {
				continue
			}
			likelihood := (m.FeatureCounts[label][feat] + alpha) / denom
			score += float64(count) * math.Log(likelihood)
		}
		logScores[label] = score
	}
	return softmax(logScores)
}

// Predict classifies one line. The heuristic layer wins when it fires; its
// confidence is kept and the remaining mass is spread over the other labels
// so callers always see a full distribution.
func (m *Model) Predict(text string) (models.Label, float64, map[models.Label]float64) {
	if d := rules.Apply(text); d != nil {
		dist := make(map[models.Label]float64, len(models.Labels))
		remainder := (1.0 - d.Confidence) / float64(len(models.Labels)-1)
		for _, label := range models.Labels {
			if label == d.Label {
				dist[label] = d.Confidence
			} else {
				dist[label] = remainder
			}
		}
		return d.Label, d.Confidence, dist
	}

	dist := m.Scores(text)
	best, bestScore := models.LabelJunk, math.Inf(-1)
	for _, label := range models.Labels {
		if score := dist[label]; score > bestScore {
			best, bestScore = label, score
		}
	}
	return best, bestScore, dist
}

func softmax(logScores map[models.Label]float64) map[models.Label]float64 {
	maxScore := math.Inf(-1)
	for _, score := range logScores {
		if score > maxScore {
			maxScore = score
		}
	}
	total := 0.0
	out := make(map[models.Label]float64, len(logScores))
	for label, score := range logScores {
		exp := math.Exp(score - maxScore)
		out[label] = exp
		total += exp
	}
	for label := range out {
		out[label] /= total
	}
	return out
}

// persisted is the on-disk gob layout. The vocabulary is flattened to a
// sorted slice so payloads are byte-stable for identical models.
type persisted struct {
	Version       int
	TrainedAt     time.Time
	TrainRows     int
	LabelCounts   map[models.Label]float64
	FeatureCounts map[models.Label]map[string]float64
	TotalCounts   map[models.Label]float64
	Vocabulary    []string
}

// Save writes the model as a gob blob. The write goes through a temp file
// in the same directory and renames into place.
func Save(m *Model, path string) error {
	vocab := make([]string, 0, len(m.Vocabulary))
	for feat := range m.Vocabulary {
		vocab = append(vocab, feat)
	}
	sort.Strings(vocab)
	payload := persisted{
		Version:       m.Version,
		TrainedAt:     m.TrainedAt,
		TrainRows:     m.TrainRows,
		LabelCounts:   m.LabelCounts,
		FeatureCounts: m.FeatureCounts,
		TotalCounts:   m.TotalCounts,
		Vocabulary:    vocab,
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("encode model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp model file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace model file: %w", err)
	}
	return nil
}

// Load reads a model saved by Save and rejects unknown format versions.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model file: %w", err)
	}
	defer f.Close()

	var payload persisted
	if err := gob.NewDecoder(f).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if payload.Version != FormatVersion {
		return nil, fmt.Errorf("model %s has format version %d, want %d", path, payload.Version, FormatVersion)
	}

	m := &Model{
		Version:       payload.Version,
		TrainedAt:     payload.TrainedAt,
		TrainRows:     payload.TrainRows,
		LabelCounts:   payload.LabelCounts,
		FeatureCounts: payload.FeatureCounts,
		TotalCounts:   payload.TotalCounts,
		Vocabulary:    make(map[string]struct{}, len(payload.Vocabulary)),
	}
	for _, feat := range payload.Vocabulary {
		m.Vocabulary[feat] = struct{}{}
	}
	if m.LabelCounts == nil {
		m.LabelCounts = make(map[models.Label]float64)
	}
	if m.FeatureCounts == nil {
		m.FeatureCounts = make(map[models.Label]map[string]float64)
	}
	if m.TotalCounts == nil {
		m.TotalCounts = make(map[models.Label]float64)
	}
	return m, nil
}

// jsonMirror is the inspectable sidecar written next to the binary payload.
type jsonMirror struct {
	Version     int                      `json:"version"`
	TrainedAt   time.Time                `json:"trainedAt"`
	TrainRows   int                      `json:"trainRows"`
	LabelCounts map[models.Label]float64 `json:"labelCounts"`
	TotalCounts map[models.Label]float64 `json:"totalCounts"`
	VocabSize   int                      `json:"vocabSize"`
	TopFeatures map[models.Label][]string `json:"topFeatures"`
}

// SaveJSON writes a human-readable summary of the model next to the binary
// payload. It carries enough to diff two models but is never loaded back.
func SaveJSON(m *Model, path string) error {
	mirror := jsonMirror{
		Version:     m.Version,
		TrainedAt:   m.TrainedAt,
		TrainRows:   m.TrainRows,
		LabelCounts: m.LabelCounts,
		TotalCounts: m.TotalCounts,
		VocabSize:   len(m.Vocabulary),
		TopFeatures: make(map[models.Label][]string, len(models.Labels)),
	}
	for _, label := range models.Labels {
		mirror.TopFeatures[label] = topFeatures(m.FeatureCounts[label], 25)
	}
	data, err := json.MarshalIndent(mirror, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal model summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write model summary: %w", err)
	}
	return nil
}

func topFeatures(counts map[string]float64, limit int) []string {
	type pair struct {
		feat  string
		count float64
	}
	pairs := make([]pair, 0, len(counts))
	for feat, count := range counts {
		pairs = append(pairs, pair{feat, count})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].feat < pairs[j].feat
	})
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.feat
	}
	return out
}
