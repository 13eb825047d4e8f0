// Package ingredient parses a single ingredient line into a name, a
// structured quantity, and optional alternative quantities. The parsers run
// in a fixed order: range form, mixed-unit form, slash-alternative form,
// then the generic quantity+unit+name shape.
package ingredient

import (
	"regexp"
	"strings"

	"recipe-lab/models"
)

const quantityExpr = `[\d\s½¼¾⅓⅔⅛⅜⅝⅞/.\-]+`

var (
	numberedInstructionRe = regexp.MustCompile(`^\d+\s*[.)]\s+[A-Za-z]`)
	rangeFormRe           = regexp.MustCompile(`(?i)^(` + quantityExpr + `)\s*(?:to|-|–|—)\s*(` + quantityExpr + `)\s+([A-Za-z]+[.,]?)\s+(.*)$`)
	mixedUnitFormRe       = regexp.MustCompile(`(?i)^(` + quantityExpr + `)\s+([A-Za-z]+[.,]?)\s*(plus|and|&|\+)\s*(` + quantityExpr + `)\s+([A-Za-z]+[.,]?)\s+(.*)$`)
	genericFormRe         = regexp.MustCompile(`^(` + quantityExpr + `)\s*([A-Za-z]+[.,]?)?\s+(.*)$`)
	nextTokenRe           = regexp.MustCompile(`^([A-Za-z]+[.,]?)(?:\s+(.*))?$`)
)

// Parse reads one ingredient line. It returns the ingredient name, the
// primary quantity (nil when the line carries none), any alternative
// quantities, and an optional trailing note.
func Parse(raw string) (string, *models.Quantity, []models.Quantity, *string) {
	cleaned := normalizeSpacing(normalizeOCRText(CleanText(raw)))

	// A numbered instruction mislabeled as an ingredient keeps its text
	// and gets no quantity.
	if numberedInstructionRe.MatchString(cleaned) {
		return cleaned, nil, nil, nil
	}

	if name, qty, extra, note, ok := parseRange(cleaned); ok {
		return name, qty, extra, note
	}
	if name, qty, extra, note, ok := parseMixedUnit(cleaned); ok {
		return name, qty, extra, note
	}
	if name, qty, extra, note, ok := parseSlashAlternative(cleaned); ok {
		return name, qty, extra, note
	}
	return parseGeneric(cleaned)
}

// parseRange handles "3 to 4 cloves garlic" and "2-3 cups stock".
func parseRange(cleaned string) (string, *models.Quantity, []models.Quantity, *string, bool) {
	m := rangeFormRe.FindStringSubmatch(cleaned)
	if m == nil {
		return "", nil, nil, nil, false
	}

	lowerValue, okLower := ParseQuantityValue(strings.TrimSpace(m[1]))
	upperValue, okUpper := ParseQuantityValue(strings.TrimSpace(m[2]))
	unitText := strings.TrimSpace(m[3])
	remaining := CleanText(m[4])
	if !okLower || !okUpper || remaining == "" {
		return "", nil, nil, nil, false
	}

	name := remaining
	unit, hasUnit := ParseUnitToken(unitText)
	if !hasUnit {
		// Forms like "3 to 4 garlic cloves" put the unit one token later.
		if next := nextTokenRe.FindStringSubmatch(remaining); next != nil {
			if nextUnit, ok := ParseUnitToken(next[1]); ok {
				name = CleanText(unitText + " " + CleanText(next[2]))
				unit, hasUnit = nextUnit, true
			} else {
				name = CleanText(unitText + " " + remaining)
			}
		} else {
			name = CleanText(unitText + " " + remaining)
		}
	}
	if !hasUnit {
		unit = "whole"
	}

	lower, upper := lowerValue, upperValue
	if upper < lower {
		lower, upper = upper, lower
	}
	upperRounded := roundQuantity(upper)
	return name, &models.Quantity{
		Value:      roundQuantity(lower),
		UpperValue: &upperRounded,
		Unit:       unit,
	}, nil, nil, true
}

// parseMixedUnit handles "1 lb plus 2 oz butter" style compound amounts.
func parseMixedUnit(cleaned string) (string, *models.Quantity, []models.Quantity, *string, bool) {
	m := mixedUnitFormRe.FindStringSubmatch(cleaned)
	if m == nil {
		return "", nil, nil, nil, false
	}

	firstValue, okFirst := ParseQuantityValue(strings.TrimSpace(m[1]))
	firstUnit, okFirstUnit := ParseUnitToken(strings.TrimSpace(m[2]))
	secondValue, okSecond := ParseQuantityValue(strings.TrimSpace(m[4]))
	secondUnit, okSecondUnit := ParseUnitToken(strings.TrimSpace(m[5]))
	remaining := CleanText(m[6])
	if remaining == "" || !okFirst || !okSecond || !okFirstUnit || !okSecondUnit {
		return "", nil, nil, nil, false
	}

	primary := &models.Quantity{Value: roundQuantity(firstValue), Unit: firstUnit}
	additional := []models.Quantity{{Value: roundQuantity(secondValue), Unit: secondUnit}}
	return remaining, primary, additional, nil, true
}

// parseSlashAlternative handles dual-system amounts like "800 g / 1 lb 12 oz
// pork shoulder" where each slash segment is a complete quantity.
func parseSlashAlternative(cleaned string) (string, *models.Quantity, []models.Quantity, *string, bool) {
	if !strings.Contains(cleaned, "/") {
		return "", nil, nil, nil, false
	}
	tokens := strings.Fields(cleaned)
	if len(tokens) < 4 {
		return "", nil, nil, nil, false
	}

	var prefixTokens []string
	splitAt := 0
	for i, token := range tokens {
		if !isQuantityPrefixToken(token) {
			break
		}
		prefixTokens = append(prefixTokens, token)
		splitAt = i + 1
	}
	if len(prefixTokens) == 0 || !containsSlash(prefixTokens) || splitAt >= len(tokens) {
		return "", nil, nil, nil, false
	}
	name := CleanText(strings.Join(tokens[splitAt:], " "))
	if name == "" {
		return "", nil, nil, nil, false
	}

	var quantities []models.Quantity
	for _, segment := range strings.Split(strings.Join(prefixTokens, " "), "/") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		segmentQuantities := parseQuantitySegment(segment)
		if len(segmentQuantities) == 0 {
			return "", nil, nil, nil, false
		}
		quantities = append(quantities, segmentQuantities...)
	}
	if len(quantities) < 2 {
		return "", nil, nil, nil, false
	}
	primary := quantities[0]
	return name, &primary, quantities[1:], nil, true
}

// parseQuantitySegment reads consecutive value/unit pairs from one slash
// segment, so "1 lb 12 oz" yields two quantities.
func parseQuantitySegment(segmentText string) []models.Quantity {
	tokens := strings.Fields(segmentText)
	var quantities []models.Quantity
	idx := 0

	for idx < len(tokens) {
		var value float64
		consumed := 0

		if idx+1 < len(tokens) {
			if _, isUnit := ParseUnitToken(tokens[idx+1]); !isUnit {
				if mixed, ok := ParseQuantityValue(tokens[idx] + " " + tokens[idx+1]); ok {
					value = mixed
					consumed = 2
				}
			}
		}
		if consumed == 0 {
			single, ok := ParseQuantityValue(tokens[idx])
			if !ok {
				break
			}
			value = single
			consumed = 1
		}
		idx += consumed

		unit := "whole"
		if idx < len(tokens) {
			if parsed, ok := ParseUnitToken(tokens[idx]); ok {
				unit = parsed
				idx++
			}
		}
		quantities = append(quantities, models.Quantity{Value: roundQuantity(value), Unit: unit})
	}
	return quantities
}

// parseGeneric is the fallback quantity + optional unit + name shape.
func parseGeneric(cleaned string) (string, *models.Quantity, []models.Quantity, *string) {
	m := genericFormRe.FindStringSubmatch(cleaned)
	if m == nil {
		return cleaned, nil, nil, nil
	}

	qtyText := strings.TrimSpace(m[1])
	unitText := strings.TrimSpace(m[2])
	remaining := strings.TrimSpace(m[3])

	value, ok := ParseQuantityValue(qtyText)
	if !ok {
		return cleaned, nil, nil, nil
	}

	var name, unit string
	parsedUnit, hasUnit := ParseUnitToken(unitText)
	switch {
	case hasUnit && unitText != "":
		unit = parsedUnit
		name = remaining
		if name == "" {
			name = cleaned
		}
	case unitText != "":
		// The token after the quantity is not a unit ("3 garlic cloves");
		// try the next token before folding everything into the name.
		if next := nextTokenRe.FindStringSubmatch(remaining); next != nil {
			if nextUnit, ok := ParseUnitToken(next[1]); ok {
				name = CleanText(unitText + " " + CleanText(next[2]))
				unit = nextUnit
			} else {
				name = CleanText(unitText + " " + remaining)
				unit = "whole"
			}
		} else {
			name = CleanText(unitText + " " + remaining)
			unit = "whole"
		}
	default:
		name = remaining
		if name == "" {
			name = cleaned
		}
		unit = "whole"
	}

	return name, &models.Quantity{Value: roundQuantity(value), Unit: unit}, nil, nil
}

func containsSlash(tokens []string) bool {
	for _, token := range tokens {
		if token == "/" {
			return true
		}
	}
	return false
}

var (
	packageAndRe      = regexp.MustCompile(`(?i)\bpackage and\b`)
	packageWordRe     = regexp.MustCompile(`(?i)\bpackage\b`)
	toTasteSaltRe     = regexp.MustCompile(`(?i)\bto\s+taste\s+salt(?:\s+and)?\b.*$`)
	toTasteTailRe     = regexp.MustCompile(`(?i)\bto\s+taste\b.*$`)
	forServingTailRe  = regexp.MustCompile(`(?i)\bfor serving\b.*$`)
	andRedTailRe      = regexp.MustCompile(`(?i)\band\s+red\b(?:\s+[A-Za-z]{1,4})?\s*$`)
	sauceTailRe       = regexp.MustCompile(`(?i)\bsauce\b.*$`)
	choppedImmedRe    = regexp.MustCompile(`(?i)\bchopped\s+immediat\w*\b.*$`)
	zestParsleyRe     = regexp.MustCompile(`(?i)\blemon\s+z[e3](?:st)?\s+(fresh parsley\b)`)
	toTasteAndTailRe  = regexp.MustCompile(`(?i)\bto\s+taste\s+and\s*$`)
	instructionBleedRe = regexp.MustCompile(`(?i)\b(?:package instructions?|set aside|minutes?|minute)\b`)
	packageInstrTailRe = regexp.MustCompile(`(?i)\bpackage instructions?\b.*$`)
	setAsideTailRe     = regexp.MustCompile(`(?i)\bset aside\b.*$`)
	minutesTailRe      = regexp.MustCompile(`(?i)\bminutes?\b.*$`)
	aboutNTailRe       = regexp.MustCompile(`(?i)\babout\s+\d+\b.*$`)
	trailingLetterRe   = regexp.MustCompile(`\b[A-Za-z]$`)

	dropVerbRe      = regexp.MustCompile(`(?i)\b(?:skillet|prepare|serve|sprinkle|immediately|return the|set aside|minutes?)\b`)
	dropNameCountRe = regexp.MustCompile(`^[A-Za-z]+\s+\d+$`)
)

// SanitizeName strips instruction bleed-through and publisher boilerplate
// from a parsed ingredient name.
func SanitizeName(name string) string {
	cleaned := CleanText(name)
	if cleaned == "" {
		return ""
	}

	lowered := strings.ToLower(cleaned)
	if strings.Contains(lowered, "package and") {
		cleaned = packageAndRe.ReplaceAllString(cleaned, "and")
	}
	cleaned = packageWordRe.ReplaceAllString(cleaned, "")
	cleaned = toTasteSaltRe.ReplaceAllString(cleaned, "to taste")
	cleaned = toTasteTailRe.ReplaceAllString(cleaned, "to taste")
	cleaned = forServingTailRe.ReplaceAllString(cleaned, "for serving")
	cleaned = andRedTailRe.ReplaceAllString(cleaned, "")
	cleaned = sauceTailRe.ReplaceAllString(cleaned, "")
	cleaned = choppedImmedRe.ReplaceAllString(cleaned, "")
	cleaned = zestParsleyRe.ReplaceAllString(cleaned, "$1")
	cleaned = toTasteAndTailRe.ReplaceAllString(cleaned, "to taste")

	if instructionBleedRe.MatchString(lowered) {
		cleaned = packageInstrTailRe.ReplaceAllString(cleaned, "")
		cleaned = setAsideTailRe.ReplaceAllString(cleaned, "")
		cleaned = minutesTailRe.ReplaceAllString(cleaned, "")
		cleaned = aboutNTailRe.ReplaceAllString(cleaned, "")
	}

	cleaned = strings.Trim(whitespaceRe.ReplaceAllString(cleaned, " "), " ,;:-")
	cleaned = strings.Trim(trailingLetterRe.ReplaceAllString(cleaned, ""), " ,;:-")
	return CleanText(cleaned)
}

// ShouldDrop reports whether a parsed entry is noise that must not reach
// the assembled ingredient list.
func ShouldDrop(name string, quantity *models.Quantity) bool {
	cleaned := CleanText(name)
	if cleaned == "" {
		return true
	}
	if IsOCRArtifact(cleaned) {
		return true
	}
	if _, isTips := TipsRemainder(cleaned); isTips {
		return true
	}

	if quantity == nil {
		if LooksLikeInstruction(cleaned) {
			return true
		}
		if dropVerbRe.MatchString(strings.ToLower(cleaned)) {
			return true
		}
		if dropNameCountRe.MatchString(cleaned) {
			return true
		}
	}
	return false
}
