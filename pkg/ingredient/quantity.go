package ingredient

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// unitAliases maps every spelling, abbreviation, and common OCR mangle of a
// unit to its canonical form.
var unitAliases = map[string]string{
	"t": "tsp", "tsp": "tsp", "tsps": "tsp",
	"teaspoon": "tsp", "teaspoons": "tsp",
	// Common typo seen in publisher data feeds.
	"teapoon": "tsp", "teapoons": "tsp",
	"tbsp": "tbsp", "tbsps": "tbsp", "tablespoon": "tbsp", "tablespoons": "tbsp",
	"c": "cup", "cup": "cup", "cups": "cup",
	"oz": "oz", "ounce": "oz", "ounces": "oz",
	"lb": "lb", "1b": "lb", "ib": "lb", "lbs": "lb", "pound": "lb", "pounds": "lb",
	"g": "g", "gram": "g", "grams": "g",
	"kg": "kg", "kgs": "kg", "kilogram": "kg", "kilograms": "kg",
	"ml": "ml", "mls": "ml", "milliliter": "ml", "milliliters": "ml",
	"l": "L", "liter": "L", "liters": "L",
	"pt": "pint", "pts": "pint", "pint": "pint", "pints": "pint",
	"qt": "quart", "qts": "quart", "quart": "quart", "quarts": "quart",
	"gal": "gallon", "gals": "gallon", "gallon": "gallon", "gallons": "gallon",
	"floz": "fl oz", "fl oz": "fl oz", "fluid ounce": "fl oz", "fluid ounces": "fl oz",
	"piece": "piece", "pieces": "piece",
	"pinch": "pinch", "pinches": "pinch",
	"dash": "dash", "dashes": "dash",
	"whole": "whole",
	"clove": "clove", "cloves": "clove",
	"bunch": "bunch", "bunches": "bunch",
	"can": "can", "cans": "can",
	"package": "package", "packages": "package",
}

// unicodeFractions map fraction glyphs to their decimal spellings.
var unicodeFractions = []struct {
	symbol, value string
}{
	{"½", "0.5"}, {"¼", "0.25"}, {"¾", "0.75"},
	{"⅓", "0.333"}, {"⅔", "0.667"},
	{"⅛", "0.125"}, {"⅜", "0.375"}, {"⅝", "0.625"}, {"⅞", "0.875"},
}

var (
	decimalCommaRe      = regexp.MustCompile(`(\d),(\d)`)
	strayFractionTailRe = regexp.MustCompile(`([½¼¾⅓⅔⅛⅜⅝⅞])\d+\b`)
	slashBeforeFracRe   = regexp.MustCompile(`^/\s*(\d+\s*/\s*\d+|[½¼¾⅓⅔⅛⅜⅝⅞])`)
	attachedFractionRe  = regexp.MustCompile(`(\d)([½¼¾⅓⅔⅛⅜⅝⅞])`)
	mergedFractionRe    = regexp.MustCompile(`^([1-9])([1-9])/(\d{1,2})$`)
	unitEdgeTrimRe      = regexp.MustCompile(`^[^A-Za-z0-9]+|[^A-Za-z0-9]+$`)
	prefixEdgeTrimRe    = regexp.MustCompile(`^[^A-Za-z0-9½¼¾⅓⅔⅛⅜⅝⅞/.\-]+|[^A-Za-z0-9½¼¾⅓⅔⅛⅜⅝⅞/.\-]+$`)
)

// mergedDenominators are the plausible culinary denominators for OCR text
// that collapsed "1 1/2" into "11/2".
var mergedDenominators = map[int]bool{2: true, 3: true, 4: true, 8: true, 16: true}

// normalizeQuantityText repairs digit confusions inside a quantity segment
// and rewrites unicode fractions as decimals.
func normalizeQuantityText(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.NewReplacer("–", "-", "—", "-").Replace(cleaned)
	cleaned = fixDigitConfusions(cleaned)
	cleaned = decimalCommaRe.ReplaceAllString(cleaned, "$1.$2")
	// OCR occasionally appends stray digits to unicode fractions ("2¼4")
	// or prefixes them with an extra slash ("/½", "/1/2").
	cleaned = strayFractionTailRe.ReplaceAllString(cleaned, "$1")
	cleaned = slashBeforeFracRe.ReplaceAllString(cleaned, "$1")
	// Keep mixed numbers parseable when the fraction glyph is attached.
	cleaned = attachedFractionRe.ReplaceAllString(cleaned, "$1 $2")
	for _, frac := range unicodeFractions {
		cleaned = strings.ReplaceAll(cleaned, frac.symbol, frac.value)
	}
	return cleaned
}

// fixDigitConfusions rewrites O and I/l glyphs that sit in digit positions.
func fixDigitConfusions(s string) string {
	runes := []rune(s)
	out := make([]rune, len(runes))
	copy(out, runes)
	for i, r := range runes {
		prevLetter := i > 0 && isASCIILetter(runes[i-1])
		prevDigit := i > 0 && unicode.IsDigit(runes[i-1])
		var next rune
		hasNext := i+1 < len(runes)
		if hasNext {
			next = runes[i+1]
		}
		nextDigit := hasNext && unicode.IsDigit(next)
		atBoundary := !hasNext || !isWordRune(next)

		switch r {
		case 'o', 'O':
			if (!prevLetter && nextDigit) ||
				(prevDigit && (nextDigit || next == '/' || atBoundary)) {
				out[i] = '0'
			}
		case 'I', 'l':
			if !prevLetter && (nextDigit || next == '/' || next == '.' || atBoundary) {
				out[i] = '1'
			}
		}
	}
	return string(out)
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// ParseQuantityValue reads a quantity segment as a number: plain values,
// fractions, mixed numbers, OCR-merged fractions, and hyphen ranges
// (averaged). The second return is false when the text is not a quantity.
func ParseQuantityValue(text string) (float64, bool) {
	cleaned := normalizeQuantityText(text)
	if cleaned == "" {
		return 0, false
	}

	if m := mergedFractionRe.FindStringSubmatch(cleaned); m != nil {
		whole, _ := strconv.Atoi(m[1])
		numerator, _ := strconv.Atoi(m[2])
		denominator, _ := strconv.Atoi(m[3])
		if mergedDenominators[denominator] && numerator < denominator {
			return float64(whole) + float64(numerator)/float64(denominator), true
		}
	}

	if strings.Contains(cleaned, "-") {
		parts := strings.SplitN(cleaned, "-", 2)
		if len(parts) == 2 {
			first, okFirst := ParseQuantityValue(strings.TrimSpace(parts[0]))
			second, okSecond := ParseQuantityValue(strings.TrimSpace(parts[1]))
			if okFirst && okSecond {
				return (first + second) / 2.0, true
			}
		}
	}

	if strings.Contains(cleaned, "/") {
		parts := strings.SplitN(cleaned, "/", 2)
		if len(parts) == 2 {
			numerator, errN := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
			denominator, errD := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if errN == nil && errD == nil && denominator != 0 {
				return numerator / denominator, true
			}
		}
	}

	fields := strings.Fields(cleaned)
	if len(fields) == 2 {
		if whole, err := strconv.ParseFloat(fields[0], 64); err == nil {
			if frac, ok := ParseQuantityValue(fields[1]); ok {
				return whole + frac, true
			}
		}
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// ParseUnitToken canonicalizes a unit token, undoing the usual OCR
// substitutions first. The second return is false for unrecognized tokens.
func ParseUnitToken(unitText string) (string, bool) {
	token := strings.TrimSpace(unitText)
	token = strings.NewReplacer("$", "s", "5", "s", "0", "o").Replace(token)
	token = unitEdgeTrimRe.ReplaceAllString(token, "")
	if token == "T" {
		return "tbsp", true
	}
	normalized := strings.ToLower(token)
	normalized = strings.NewReplacer("1b", "lb", "ib", "lb").Replace(normalized)
	normalized = strings.NewReplacer("tb5p", "tbsp", "t5p", "tsp").Replace(normalized)
	unit, ok := unitAliases[normalized]
	return unit, ok
}

func roundQuantity(value float64) float64 {
	return math.Round(value*10000) / 10000
}

// isQuantityPrefixToken reports whether a token belongs to the quantity
// prefix of an ingredient line: a value, a unit, or a bare slash.
func isQuantityPrefixToken(token string) bool {
	stripped := strings.TrimSpace(token)
	if stripped == "" {
		return false
	}
	if stripped == "/" {
		return true
	}
	cleaned := prefixEdgeTrimRe.ReplaceAllString(stripped, "")
	if cleaned == "" {
		return false
	}
	if _, ok := ParseQuantityValue(cleaned); ok {
		return true
	}
	_, ok := ParseUnitToken(cleaned)
	return ok
}
