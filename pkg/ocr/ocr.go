// Package ocr recognizes recipe text in images. The primary engine binds
// libtesseract directly; a command-line engine sweeping page segmentation
// modes backs it up, since photographed recipe cards often need a different
// segmentation than the library default.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"recipe-lab/models"
)

// Engine recognizes text in one image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte, name string) (string, error)
}

// TesseractEngine runs OCR through the libtesseract bindings.
type TesseractEngine struct{}

func (TesseractEngine) Name() string { return "tesseract" }

func (TesseractEngine) Recognize(ctx context.Context, image []byte, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage("eng"); err != nil {
		return "", fmt.Errorf("setting OCR language: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("loading image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognizing text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text recognized in %s", name)
	}
	return text, nil
}

// CommandEngine shells out to the tesseract binary, trying several page
// segmentation modes and keeping the output that looks most like a recipe.
type CommandEngine struct {
	// Timeout bounds each tesseract invocation, not the whole sweep.
	Timeout time.Duration
}

func (CommandEngine) Name() string { return "tesseract_cli" }

var pageSegModes = []string{"4", "6", "3", "11", "12"}

func (e CommandEngine) Recognize(ctx context.Context, image []byte, name string) (string, error) {
	suffix := filepath.Ext(name)
	if suffix == "" {
		suffix = ".png"
	}
	tmp, err := os.CreateTemp("", "ocr-*"+suffix)
	if err != nil {
		return "", fmt.Errorf("creating temp image: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing temp image: %w", err)
	}

	bestScore := 0.0
	bestText := ""
	found := false
	var lastErr error

	for _, psm := range pageSegModes {
		text, err := e.runOnce(ctx, tmpPath, psm)
		if err != nil {
			lastErr = err
			continue
		}
		score := scoreRecipeShape(text)
		if !found || score > bestScore {
			bestScore = score
			bestText = text
			found = true
		}
	}
	if !found {
		if lastErr == nil {
			lastErr = fmt.Errorf("no OCR output for %s", name)
		}
		return "", fmt.Errorf("tesseract failed: %w", lastErr)
	}
	return bestText, nil
}

func (e CommandEngine) runOnce(ctx context.Context, imagePath, psm string) (string, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "tesseract", imagePath, "stdout",
		"--oem", "1", "-l", "eng", "-c", "preserve_interword_spaces=1", "--psm", psm)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("psm %s: %w", psm, err)
	}
	return string(out), nil
}

var (
	ingredientLeadRe = regexp.MustCompile(`^[\d\s½¼¾⅓⅔⅛⅜⅝⅞/.\-]+`)
	actionLeadRe     = regexp.MustCompile(`(?i)^(?:\d+\s*[.)]\s*)?(?:preheat|add|mix|stir|bake|cook|whisk|combine|simmer|serve)\b`)
	noiseRe          = regexp.MustCompile(`[{}<>_=]{2,}`)
)

// scoreRecipeShape ranks OCR output by how much it resembles a recipe:
// quantity-led lines, imperative cooking lines, and overall line count,
// penalized for symbol noise.
func scoreRecipeShape(text string) float64 {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) == 0 {
		return 0
	}

	ingredientLike := 0
	actionLike := 0
	noisy := 0
	for _, line := range lines {
		if ingredientLeadRe.MatchString(line) {
			ingredientLike++
		}
		if actionLeadRe.MatchString(line) {
			actionLike++
		}
		if noiseRe.MatchString(line) {
			noisy++
		}
	}
	return float64(ingredientLike)*1.6 + float64(actionLike)*1.2 +
		float64(len(lines))*0.3 - float64(noisy)*2.0
}

// Recognizer tries a primary engine and falls back once to the secondary.
type Recognizer struct {
	primary   Engine
	secondary Engine
}

// NewRecognizer builds the engine chain from configuration. "auto" pairs
// the library engine with the command-line sweep.
func NewRecognizer(cfg models.OCRConfig) *Recognizer {
	switch cfg.Engine {
	case "tesseract":
		return &Recognizer{primary: TesseractEngine{}}
	case "command":
		return &Recognizer{primary: CommandEngine{Timeout: cfg.Timeout}}
	default:
		return &Recognizer{
			primary:   TesseractEngine{},
			secondary: CommandEngine{Timeout: cfg.Timeout},
		}
	}
}

// NewRecognizerWithEngines wires explicit engines; the secondary may be nil.
func NewRecognizerWithEngines(primary, secondary Engine) *Recognizer {
	return &Recognizer{primary: primary, secondary: secondary}
}

// Recognize runs OCR on one image, returning the text and which engine
// produced it. Both engines failing joins the two errors.
func (r *Recognizer) Recognize(ctx context.Context, image []byte, name string) (string, string, error) {
	text, primaryErr := r.primary.Recognize(ctx, image, name)
	if primaryErr == nil {
		return text, "ocr_" + r.primary.Name(), nil
	}
	if r.secondary == nil {
		return "", "", primaryErr
	}

	text, secondaryErr := r.secondary.Recognize(ctx, image, name)
	if secondaryErr == nil {
		return text, "ocr_" + r.secondary.Name() + "_fallback", nil
	}
	return "", "", errors.Join(primaryErr, secondaryErr)
}
