// Package dataset loads and validates the labeled corpus: document fixtures
// under documents/, per-document labeled lines under lines/, and the
// deterministic document-level holdout split used by training.
package dataset

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"recipe-lab/models"
)

const (
	docSuffix   = ".doc.json"
	linesSuffix = ".lines.jsonl"
)

// requiredTargetFields must be present in every document's target_recipe.
var requiredTargetFields = []string{"title", "ingredients", "steps"}

// LoadDocuments reads every document fixture under dir/documents, sorted by
// document id.
func LoadDocuments(dir string) ([]models.DatasetDocument, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "documents", "*"+docSuffix))
	if err != nil {
		return nil, fmt.Errorf("glob documents: %w", err)
	}
	sort.Strings(paths)

	docs := make([]models.DatasetDocument, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read document %s: %w", path, err)
		}
		var doc models.DatasetDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse document %s: %w", path, err)
		}
		if doc.DocID == "" {
			doc.DocID = strings.TrimSuffix(filepath.Base(path), docSuffix)
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].DocID < docs[j].DocID })
	return docs, nil
}

// LoadLineRows reads labeled rows from dir/lines, filtered by optional
// document-id prefixes. Rows come back sorted by (doc id, line index).
// An empty include list means every document; exclude wins over include.
func LoadLineRows(dir string, include, exclude []string) ([]models.LineRow, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "lines", "*"+linesSuffix))
	if err != nil {
		return nil, fmt.Errorf("glob line files: %w", err)
	}
	sort.Strings(paths)

	var rows []models.LineRow
	for _, path := range paths {
		docID := strings.TrimSuffix(filepath.Base(path), linesSuffix)
		if !matchesPrefixes(docID, include, true) || matchesPrefixes(docID, exclude, false) {
			continue
		}
		docRows, err := readLineFile(path, docID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, docRows...)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].DocID != rows[j].DocID {
			return rows[i].DocID < rows[j].DocID
		}
		return rows[i].LineIndex < rows[j].LineIndex
	})
	return rows, nil
}

func readLineFile(path, docID string) ([]models.LineRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open line file %s: %w", path, err)
	}
	defer f.Close()

	var rows []models.LineRow
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var row models.LineRow
		if err := json.Unmarshal([]byte(text), &row); err != nil {
			return nil, fmt.Errorf("parse %s line %d: %w", path, lineNo, err)
		}
		row.DocID = docID
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan line file %s: %w", path, err)
	}
	return rows, nil
}

func matchesPrefixes(docID string, prefixes []string, emptyMeansAll bool) bool {
	if len(prefixes) == 0 {
		return emptyMeansAll
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(docID, prefix) {
			return true
		}
	}
	return false
}

// Validate runs every schema check over the dataset and returns the
// aggregate result. It fails with an error only when the directory itself
// cannot be read; content problems land in the result's error list.
func Validate(dir string) (*models.ValidationResult, error) {
	result := &models.ValidationResult{
		LabelCounts:  make(map[string]int),
		SourceCounts: make(map[string]int),
	}
	addError := func(format string, args ...any) {
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
	}

	docs, err := LoadDocuments(dir)
	if err != nil {
		return nil, err
	}
	docsByID := make(map[string]models.DatasetDocument, len(docs))
	for _, doc := range docs {
		if _, dup := docsByID[doc.DocID]; dup {
			addError("document %s: duplicate id", doc.DocID)
			continue
		}
		docsByID[doc.DocID] = doc

		if doc.SourceType == "" {
			addError("document %s: missing source_type", doc.DocID)
		} else {
			result.SourceCounts[doc.SourceType]++
		}
		if len(doc.NormalizedLines) == 0 {
			addError("document %s: empty normalized_lines", doc.DocID)
		}
		if doc.TargetRecipe == nil {
			addError("document %s: missing target_recipe", doc.DocID)
		} else {
			for _, field := range requiredTargetFields {
				if _, ok := doc.TargetRecipe[field]; !ok {
					addError("document %s: target_recipe missing %q", doc.DocID, field)
				}
			}
		}
	}

	rows, err := LoadLineRows(dir, nil, nil)
	if err != nil {
		return nil, err
	}
	rowsByDoc := make(map[string][]models.LineRow)
	for _, row := range rows {
		rowsByDoc[row.DocID] = append(rowsByDoc[row.DocID], row)
	}

	for docID, docRows := range rowsByDoc {
		doc, ok := docsByID[docID]
		if !ok {
			addError("lines %s: no matching document fixture", docID)
			continue
		}
		if len(docRows) != len(doc.NormalizedLines) {
			addError("document %s: %d labeled lines, %d normalized lines",
				docID, len(docRows), len(doc.NormalizedLines))
		}
		seen := make(map[int]bool, len(docRows))
		for _, row := range docRows {
			if !models.IsValidLabel(string(row.Label)) {
				addError("document %s line %d: invalid label %q", docID, row.LineIndex, row.Label)
			} else {
				result.LabelCounts[string(row.Label)]++
			}
			if seen[row.LineIndex] {
				addError("document %s line %d: duplicate line_index", docID, row.LineIndex)
			}
			seen[row.LineIndex] = true
			if row.LineIndex >= 0 && row.LineIndex < len(doc.NormalizedLines) {
				if row.Text != doc.NormalizedLines[row.LineIndex] {
					addError("document %s line %d: text does not match normalized_lines", docID, row.LineIndex)
				}
			} else {
				addError("document %s line %d: line_index out of range", docID, row.LineIndex)
			}
		}
		for i := 0; i < len(doc.NormalizedLines); i++ {
			if !seen[i] {
				addError("document %s line %d: missing labeled row", docID, i)
			}
		}
	}
	for docID := range docsByID {
		if _, ok := rowsByDoc[docID]; !ok {
			addError("document %s: no labeled line file", docID)
		}
	}

	sort.Strings(result.Errors)
	result.IsValid = len(result.Errors) == 0
	return result, nil
}

// SplitDocs partitions document ids into train and holdout sets using a
// sha256 bucket per id, so membership is stable across runs and machines.
// Both sides are guaranteed non-empty whenever two or more documents exist.
func SplitDocs(docIDs []string, holdoutRatio float64) (train, holdout []string) {
	sorted := append([]string(nil), docIDs...)
	sort.Strings(sorted)

	threshold := uint64(holdoutRatio * 1000)
	for _, id := range sorted {
		if hashBucket(id) < threshold {
			holdout = append(holdout, id)
		} else {
			train = append(train, id)
		}
	}
	if len(sorted) >= 2 {
		if len(holdout) == 0 {
			holdout = append(holdout, train[len(train)-1])
			train = train[:len(train)-1]
		} else if len(train) == 0 {
			train = append(train, holdout[len(holdout)-1])
			holdout = holdout[:len(holdout)-1]
		}
	}
	return train, holdout
}

func hashBucket(docID string) uint64 {
	sum := sha256.Sum256([]byte(docID))
	return binary.BigEndian.Uint64(sum[:8]) % 1000
}

// SplitRows applies a document split to labeled rows and records the
// held-out examples.
func SplitRows(rows []models.LineRow, holdoutRatio float64) (trainRows, holdoutRows []models.LineRow, split *models.Split) {
	docSet := make(map[string]bool)
	for _, row := range rows {
		docSet[row.DocID] = true
	}
	docIDs := make([]string, 0, len(docSet))
	for id := range docSet {
		docIDs = append(docIDs, id)
	}
	train, holdout := SplitDocs(docIDs, holdoutRatio)

	holdoutSet := make(map[string]bool, len(holdout))
	for _, id := range holdout {
		holdoutSet[id] = true
	}

	split = &models.Split{TrainDocs: train, HoldoutDocs: holdout}
	for _, row := range rows {
		if holdoutSet[row.DocID] {
			holdoutRows = append(holdoutRows, row)
			split.HoldoutExamples = append(split.HoldoutExamples, models.SplitEntry{
				DocID:     row.DocID,
				LineIndex: row.LineIndex,
			})
		} else {
			trainRows = append(trainRows, row)
		}
	}
	split.TrainRows = len(trainRows)
	split.HoldoutRows = len(holdoutRows)
	return trainRows, holdoutRows, split
}
