package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"recipe-lab/models"
	"recipe-lab/pkg/artifacts"
	"recipe-lab/pkg/classifier"
	"recipe-lab/pkg/history"
	"recipe-lab/pkg/lifecycle"
	"recipe-lab/pkg/predictor"
)

const recipeText = `Lemon Bars
Ingredients
2 cups sugar
1 cup flour
Directions
Mix the sugar and flour together.
Bake for 20 minutes until set.
Notes:
Best eaten the same day`

func trainedPredictor(t *testing.T) *predictor.Predictor {
	t.Helper()
	rows := []models.LineRow{
		{DocID: "d", LineIndex: 0, Text: "Lemon Bars", Label: models.LabelTitle},
		{DocID: "d", LineIndex: 1, Text: "2 cups sugar", Label: models.LabelIngredient},
		{DocID: "d", LineIndex: 2, Text: "Mix the sugar and flour together.", Label: models.LabelStep},
	}
	return predictor.New(classifier.Train(rows))
}

func testServer(t *testing.T, pred *predictor.Predictor) *Server {
	t.Helper()
	dir := t.TempDir()

	cfg := models.DefaultConfig()
	cfg.ArtifactDir = filepath.Join(dir, "artifacts")
	cfg.ExportDir = filepath.Join(dir, "artifacts", "bundle")
	cfg.HistoryPath = filepath.Join(dir, "history.db")

	store, err := artifacts.NewManager(cfg.ArtifactDir)
	if err != nil {
		t.Fatalf("failed to create artifact manager: %v", err)
	}
	runs, err := history.Open(cfg.HistoryPath, cfg.HistoryMaxRuns)
	if err != nil {
		t.Fatalf("failed to open history: %v", err)
	}
	t.Cleanup(func() { runs.Close() })

	orch := lifecycle.New(cfg, store, runs, pred)
	return New(cfg, zap.NewNop(), pred, orch, runs)
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := testServer(t, trainedPredictor(t))
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["model_loaded"] != true {
		t.Errorf("expected model_loaded true, got %v", body["model_loaded"])
	}
}

func TestHealthWithoutModel(t *testing.T) {
	srv := testServer(t, &predictor.Predictor{})
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["model_loaded"] != false {
		t.Errorf("expected model_loaded false, got %v", body["model_loaded"])
	}
}

func TestPredictText(t *testing.T) {
	srv := testServer(t, trainedPredictor(t))
	router := srv.Router()

	rec := postJSON(t, router, "/api/predict", predictRequest{Mode: "text", Text: recipeText})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp predictResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Method != "text_input" {
		t.Errorf("expected method text_input, got %q", resp.Method)
	}
	if resp.Truncated {
		t.Error("expected truncated false")
	}
	if len(resp.Classifications) != 9 {
		t.Fatalf("expected 9 classifications, got %d", len(resp.Classifications))
	}
	if resp.Classifications[0].Label != string(models.LabelTitle) {
		t.Errorf("expected first line labeled title, got %q", resp.Classifications[0].Label)
	}
	if resp.Recipe.Title != "Lemon Bars" {
		t.Errorf("expected recipe title Lemon Bars, got %q", resp.Recipe.Title)
	}
	if len(resp.Recipe.Ingredients) != 2 {
		t.Errorf("expected 2 ingredients, got %d", len(resp.Recipe.Ingredients))
	}
	if len(resp.Recipe.Steps) != 2 {
		t.Errorf("expected 2 steps, got %d", len(resp.Recipe.Steps))
	}
	if !strings.Contains(resp.Recipe.Notes, "Best eaten") {
		t.Errorf("expected notes to carry the note line, got %q", resp.Recipe.Notes)
	}
}

func TestPredictTruncatesLongInput(t *testing.T) {
	srv := testServer(t, trainedPredictor(t))
	srv.cfg.Server.MaxLines = 3
	router := srv.Router()

	rec := postJSON(t, router, "/api/predict", predictRequest{Mode: "text", Text: recipeText})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp predictResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Truncated {
		t.Error("expected truncated true")
	}
	if len(resp.Classifications) != 3 {
		t.Errorf("expected 3 classifications, got %d", len(resp.Classifications))
	}
}

func TestPredictRejectsEmptyText(t *testing.T) {
	srv := testServer(t, trainedPredictor(t))
	rec := postJSON(t, srv.Router(), "/api/predict", predictRequest{Mode: "text", Text: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPredictRejectsUnknownMode(t *testing.T) {
	srv := testServer(t, trainedPredictor(t))
	rec := postJSON(t, srv.Router(), "/api/predict", predictRequest{Mode: "carrier-pigeon", Text: "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPredictRejectsBadImageData(t *testing.T) {
	srv := testServer(t, trainedPredictor(t))
	rec := postJSON(t, srv.Router(), "/api/predict", predictRequest{Mode: "image", ImageDataURL: "not-base64!!!"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPredictWithoutModel(t *testing.T) {
	srv := testServer(t, &predictor.Predictor{})
	rec := postJSON(t, srv.Router(), "/api/predict", predictRequest{Mode: "text", Text: recipeText})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestAssemble(t *testing.T) {
	srv := testServer(t, trainedPredictor(t))
	rec := postJSON(t, srv.Router(), "/api/assemble", assembleRequest{
		Lines: []assembleLine{
			{Text: "Lemon Bars", Label: "title"},
			{Text: "2 cups sugar", Label: "ingredient"},
			{Text: "Mix everything together.", Label: "step"},
		},
		SourceURL: "https://example.com/lemon-bars",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Recipe models.Recipe `json:"recipe"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Recipe.Title != "Lemon Bars" {
		t.Errorf("expected title Lemon Bars, got %q", resp.Recipe.Title)
	}
	if resp.Recipe.SourceURL != "https://example.com/lemon-bars" {
		t.Errorf("expected source url preserved, got %q", resp.Recipe.SourceURL)
	}
	if len(resp.Recipe.Ingredients) != 1 || len(resp.Recipe.Steps) != 1 {
		t.Errorf("expected 1 ingredient and 1 step, got %d and %d",
			len(resp.Recipe.Ingredients), len(resp.Recipe.Steps))
	}
}

func TestAssembleRejectsInvalidLabel(t *testing.T) {
	srv := testServer(t, trainedPredictor(t))
	rec := postJSON(t, srv.Router(), "/api/assemble", assembleRequest{
		Lines: []assembleLine{{Text: "2 cups sugar", Label: "garnish"}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "garnish") {
		t.Errorf("expected error to name the bad label, got %s", rec.Body.String())
	}
}

func TestAssembleRejectsEmptyLines(t *testing.T) {
	srv := testServer(t, trainedPredictor(t))
	rec := postJSON(t, srv.Router(), "/api/assemble", assembleRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv := testServer(t, trainedPredictor(t))
	entry := models.RunEntry{
		ID:        "run-1",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Action:    "retrain",
		Success:   true,
		Stages:    map[string]int{"train": 0},
	}
	if err := srv.runs.Append(entry); err != nil {
		t.Fatalf("failed to append history entry: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=5", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Runs []models.RunEntry `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Runs) != 1 || resp.Runs[0].ID != "run-1" {
		t.Fatalf("expected single run run-1, got %+v", resp.Runs)
	}
}

func TestHistoryRejectsBadLimit(t *testing.T) {
	srv := testServer(t, trainedPredictor(t))
	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=zero", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRetrainEndpoint(t *testing.T) {
	srv := testServer(t, trainedPredictor(t))
	datasetDir := writeServerDataset(t)

	rec := postJSON(t, srv.Router(), "/api/retrain", runRequest{DatasetDir: datasetDir})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result lifecycle.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !result.Entry.Success {
		t.Errorf("expected successful run, got %+v", result.Entry)
	}
	if result.Entry.RolledBack {
		t.Error("expected no rollback")
	}
}

func TestMetricsEndpointRequiresModel(t *testing.T) {
	srv := testServer(t, trainedPredictor(t))
	datasetDir := writeServerDataset(t)

	rec := postJSON(t, srv.Router(), "/api/metrics", runRequest{DatasetDir: datasetDir})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result lifecycle.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	// No serving model on disk yet, so the evaluate stage fails but the
	// run itself is recorded.
	if result.Entry.Action != "metrics" {
		t.Errorf("expected metrics action, got %q", result.Entry.Action)
	}
	if result.Entry.Success {
		t.Error("expected metrics run without a trained model to fail")
	}
}

func TestDecodeImageDataURL(t *testing.T) {
	payload := []byte("fake image bytes")
	encoded := base64.StdEncoding.EncodeToString(payload)

	decoded, err := decodeImageDataURL("data:image/png;base64," + encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Error("expected data url payload to round-trip")
	}

	decoded, err = decodeImageDataURL(encoded)
	if err != nil {
		t.Fatalf("unexpected error for bare base64: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Error("expected bare base64 payload to round-trip")
	}

	if _, err := decodeImageDataURL(""); err == nil {
		t.Error("expected error for empty input")
	}
}

func writeServerDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	docsDir := filepath.Join(dir, "documents")
	linesDir := filepath.Join(dir, "lines")
	regressionDir := filepath.Join(dir, "regression")
	for _, d := range []string{docsDir, linesDir, regressionDir} {
		if err := os.MkdirAll(d, 0750); err != nil {
			t.Fatalf("failed to create %s: %v", d, err)
		}
	}

	titles := []string{"Lemon Bars", "Apple Crumble", "Peach Cobbler", "Berry Trifle"}
	labels := []models.Label{
		models.LabelTitle, models.LabelHeader,
		models.LabelIngredient, models.LabelIngredient,
		models.LabelHeader, models.LabelStep, models.LabelStep,
		models.LabelHeader, models.LabelNote,
	}
	for i, title := range titles {
		docID := "doc_0" + string(rune('0'+i))
		lines := []string{
			title,
			"Ingredients",
			"2 cups sugar",
			"1 cup flour",
			"Directions",
			"Mix the sugar and flour together.",
			"Bake for 20 minutes until set.",
			"Notes:",
			"Best eaten the same day",
		}
		doc := models.DatasetDocument{
			DocID:           docID,
			SourceType:      "text",
			Title:           title,
			NormalizedLines: lines,
			TargetRecipe: map[string]any{
				"title":       title,
				"ingredients": []string{},
				"steps":       []string{},
			},
		}
		docBytes, err := json.Marshal(doc)
		if err != nil {
			t.Fatalf("failed to marshal document: %v", err)
		}
		if err := os.WriteFile(filepath.Join(docsDir, docID+".doc.json"), docBytes, 0600); err != nil {
			t.Fatalf("failed to write document: %v", err)
		}

		var buf bytes.Buffer
		for j, line := range lines {
			row := map[string]any{"line_index": j, "text": line, "label": labels[j]}
			rowBytes, err := json.Marshal(row)
			if err != nil {
				t.Fatalf("failed to marshal row: %v", err)
			}
			buf.Write(rowBytes)
			buf.WriteByte('\n')
		}
		if err := os.WriteFile(filepath.Join(linesDir, docID+".lines.jsonl"), buf.Bytes(), 0600); err != nil {
			t.Fatalf("failed to write lines: %v", err)
		}
	}

	fixture := map[string]any{
		"name": "lemon_bars",
		"text": recipeText,
		"expected": map[string]any{
			"ingredients": []string{"2 cups sugar", "1 cup flour"},
			"steps": []string{
				"Mix the sugar and flour together.",
				"Bake for 20 minutes until set.",
			},
			"notes_contains": []string{"best eaten"},
		},
	}
	fixtureBytes, err := json.Marshal(fixture)
	if err != nil {
		t.Fatalf("failed to marshal fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(regressionDir, "lemon_bars.json"), fixtureBytes, 0600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return dir
}
