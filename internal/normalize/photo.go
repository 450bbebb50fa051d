package normalize

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pharrrodev/type2lyfe-sub001/internal/record"
)

const lowConfidenceThreshold = 0.6

var envelopeKeys = []string{"data", "result", "analysis", "extraction"}

var (
	glucoseValueKeys  = []string{"value", "reading", "glucose", "glucose_value", "blood_glucose"}
	unitKeys          = []string{"unit", "units"}
	mealContextKeys   = []string{"meal_context", "mealContext", "context"}
	mealItemsKeys     = []string{"items", "foods", "food_items", "foodItems", "detected_items"}
	itemNameKeys      = []string{"name", "food", "label", "item", "description"}
	itemQuantityKeys  = []string{"quantity", "portion", "serving", "amount"}
	carbsKeys         = []string{"carbs", "carbs_g", "carbohydrates", "carbohydrates_g", "carb"}
	proteinKeys       = []string{"protein", "protein_g", "proteins"}
	fatKeys           = []string{"fat", "fat_g", "fats"}
	caloriesKeys      = []string{"calories", "kcal", "energy_kcal", "energy"}
	systolicKeys      = []string{"systolic", "sys", "sbp"}
	diastolicKeys     = []string{"diastolic", "dia", "dbp"}
	pulseKeys         = []string{"pulse", "heart_rate", "heartRate", "hr", "bpm"}
	weightValueKeys   = []string{"value", "weight", "reading"}
	confidenceKeys    = []string{"confidence", "score"}
	pressureTextKeys  = []string{"reading", "value", "blood_pressure"}
	partialItemMarker = "some nutrition values were not detected"
)

// Photo normalizes a vision-service response. The response is untrusted:
// every field is looked up with a fallback, absent lists become empty lists
// and absent numbers become zero, flagged with WarningPartialExtraction.
// Only a document that is not a JSON object is rejected.
func Photo(logType record.LogType, raw []byte) (Result, error) {
	if !record.ModeSupported(logType, record.ModePhoto) {
		return Result{}, unsupported(logType, record.ModePhoto)
	}

	document, ok := decodeObject(raw)
	if !ok {
		return Result{}, &NormalizationError{
			Kind:    KindUnusableAnalysis,
			LogType: logType,
			Message: "analysis response is not a JSON object",
		}
	}
	outer := document
	document = unwrapEnvelope(document)

	result := Result{}
	confidence, _, ok := numberField(outer, confidenceKeys...)
	if !ok {
		confidence, _, ok = numberField(document, confidenceKeys...)
	}
	if ok {
		if confidence > 1 {
			confidence = confidence / 100
		}
		if confidence < lowConfidenceThreshold {
			result.warn(WarningLowConfidence, "", "the analysis is not confident, please check the values")
		}
	}

	switch logType {
	case record.LogTypeGlucose:
		photoGlucose(document, &result)
	case record.LogTypeMeal:
		photoMeal(document, &result)
	case record.LogTypeBloodPressure:
		photoBloodPressure(document, &result)
	case record.LogTypeWeight:
		photoWeight(document, &result)
	}
	return result, nil
}

func photoGlucose(document map[string]any, result *Result) {
	value, ambiguous, ok := numberField(document, glucoseValueKeys...)
	if !ok {
		result.warn(WarningPartialExtraction, "value", "no reading was detected")
	}
	result.flagAmbiguous("value", ambiguous)

	unit, ok := record.ParseGlucoseUnit(stringField(document, unitKeys...))
	if !ok {
		unit = inferGlucoseUnit(value)
		if value > 0 {
			result.warn(WarningDefaultedUnit, "unit", "unit inferred from the value")
		}
	}

	context, _ := record.ParseMealContext(stringField(document, mealContextKeys...))
	result.Payload = record.GlucosePayload{Value: value, Unit: unit, MealContext: context}
}

func photoMeal(document map[string]any, result *Result) {
	rawItems, ok := listField(document, mealItemsKeys...)
	if !ok {
		result.warn(WarningPartialExtraction, "items", "no food items were detected")
	}

	items := make([]record.FoodItem, 0, len(rawItems))
	for _, rawItem := range rawItems {
		switch typed := rawItem.(type) {
		case string:
			name := strings.TrimSpace(typed)
			if name == "" {
				continue
			}
			items = append(items, record.FoodItem{Name: name})
			result.warn(WarningPartialExtraction, "items", partialItemMarker)
		case map[string]any:
			item, complete := photoFoodItem(typed)
			if item.Name == "" && item.CarbsG == 0 && item.Calories == 0 {
				continue
			}
			if !complete {
				result.warn(WarningPartialExtraction, "items", partialItemMarker)
			}
			items = append(items, item)
		}
	}
	result.Payload = record.MealPayload{Items: items}
}

func photoFoodItem(document map[string]any) (record.FoodItem, bool) {
	complete := true
	item := record.FoodItem{
		Name:     strings.TrimSpace(stringField(document, itemNameKeys...)),
		Quantity: strings.TrimSpace(stringField(document, itemQuantityKeys...)),
	}
	if item.Name == "" {
		complete = false
	}

	macros := []struct {
		keys   []string
		target *float64
	}{
		{carbsKeys, &item.CarbsG},
		{proteinKeys, &item.ProteinG},
		{fatKeys, &item.FatG},
		{caloriesKeys, &item.Calories},
	}
	for _, macro := range macros {
		value, ambiguous, ok := numberField(document, macro.keys...)
		if ambiguous {
			complete = false
		}
		if !ok || value < 0 {
			complete = false
			continue
		}
		*macro.target = value
	}
	return item, complete
}

func photoBloodPressure(document map[string]any, result *Result) {
	systolic, systolicAmbiguous, systolicOK := numberField(document, systolicKeys...)
	diastolic, diastolicAmbiguous, diastolicOK := numberField(document, diastolicKeys...)
	if !systolicOK || !diastolicOK {
		if parsedSystolic, parsedDiastolic, ok := parsePressureText(stringField(document, pressureTextKeys...)); ok {
			systolic, diastolic = parsedSystolic, parsedDiastolic
			systolicOK, diastolicOK = true, true
			systolicAmbiguous, diastolicAmbiguous = false, false
		}
	}
	result.flagAmbiguous("systolic", systolicAmbiguous)
	result.flagAmbiguous("diastolic", diastolicAmbiguous)
	if !systolicOK {
		result.warn(WarningPartialExtraction, "systolic", "systolic value was not detected")
	}
	if !diastolicOK {
		result.warn(WarningPartialExtraction, "diastolic", "diastolic value was not detected")
	}

	pulse, pulseAmbiguous, _ := numberField(document, pulseKeys...)
	result.flagAmbiguous("pulse", pulseAmbiguous)
	result.Payload = record.BloodPressurePayload{
		Systolic:  roundInt(systolic),
		Diastolic: roundInt(diastolic),
		Pulse:     roundInt(pulse),
	}
}

func photoWeight(document map[string]any, result *Result) {
	value, ambiguous, ok := numberField(document, weightValueKeys...)
	if !ok {
		result.warn(WarningPartialExtraction, "value", "no weight was detected")
	}
	result.flagAmbiguous("value", ambiguous)
	unit, ok := record.ParseWeightUnit(stringField(document, unitKeys...))
	if !ok {
		unit = record.WeightKg
		if value > 0 {
			result.warn(WarningDefaultedUnit, "unit", "unit defaulted to kg")
		}
	}
	result.Payload = record.WeightPayload{Value: value, Unit: unit}
}

func decodeObject(raw []byte) (map[string]any, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false
	}
	var document map[string]any
	if err := json.Unmarshal(trimmed, &document); err != nil || document == nil {
		return nil, false
	}
	return document, true
}

// unwrapEnvelope descends into {"data": {...}}-style wrappers, at most twice.
func unwrapEnvelope(document map[string]any) map[string]any {
	for depth := 0; depth < 2; depth++ {
		unwrapped := false
		for _, key := range envelopeKeys {
			inner, ok := document[key].(map[string]any)
			if !ok {
				continue
			}
			document = inner
			unwrapped = true
			break
		}
		if !unwrapped {
			break
		}
	}
	return document
}

func lookup(document map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if value, ok := document[key]; ok && value != nil {
			return value, true
		}
	}
	return nil, false
}

// numberField reports ambiguous when a text value had to be read with a
// guessed digit grouping, such as "1,250".
func numberField(document map[string]any, keys ...string) (float64, bool, bool) {
	value, ok := lookup(document, keys...)
	if !ok {
		return 0, false, false
	}
	return asNumber(value)
}

func asNumber(value any) (float64, bool, bool) {
	switch typed := value.(type) {
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return 0, false, false
		}
		return typed, false, true
	case string:
		return parseNumberText(typed)
	case map[string]any:
		if inner, ok := typed["value"]; ok {
			return asNumber(inner)
		}
	}
	return 0, false, false
}

// parseNumberText reads "45 g", "1,250 kcal", "7,5" or "1.250,5". A comma is
// a decimal separator only when it is the sole separator and is followed by
// one or two digits; otherwise commas group thousands. A single comma
// followed by exactly three digits is read as grouping and flagged.
func parseNumberText(text string) (float64, bool, bool) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimRightFunc(cleaned, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.' && r != ','
	})
	cleaned = strings.TrimRight(cleaned, ".,")

	ambiguous := false
	commas := strings.Count(cleaned, ",")
	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")
	switch {
	case commas == 0:
	case lastDot > lastComma:
		if !validGrouping(cleaned[:lastDot], ",") {
			return 0, false, false
		}
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case lastDot >= 0:
		if commas > 1 || !validGrouping(cleaned[:lastComma], ".") {
			return 0, false, false
		}
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	default:
		fraction := len(cleaned) - lastComma - 1
		switch {
		case commas == 1 && fraction >= 1 && fraction <= 2:
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		case validGrouping(cleaned, ","):
			ambiguous = commas == 1
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		default:
			return 0, false, false
		}
	}

	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, false, false
	}
	return parsed, ambiguous, true
}

// validGrouping reports whether every group after the first separator has
// exactly three digits.
func validGrouping(text string, separator string) bool {
	groups := strings.Split(text, separator)
	if len(groups[0]) == 0 || len(groups[0]) > 3 && len(groups) > 1 {
		return false
	}
	for _, group := range groups[1:] {
		if len(group) != 3 {
			return false
		}
	}
	return true
}

func stringField(document map[string]any, keys ...string) string {
	value, ok := lookup(document, keys...)
	if !ok {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		return ""
	}
}

func listField(document map[string]any, keys ...string) ([]any, bool) {
	value, ok := lookup(document, keys...)
	if !ok {
		return []any{}, false
	}
	list, ok := value.([]any)
	if !ok {
		return []any{}, false
	}
	return list, true
}

func parsePressureText(text string) (float64, float64, bool) {
	parts := strings.Split(strings.TrimSpace(text), "/")
	if len(parts) != 2 {
		return 0, 0, false
	}
	systolic, systolicAmbiguous, systolicOK := asNumber(strings.TrimSpace(parts[0]))
	diastolic, diastolicAmbiguous, diastolicOK := asNumber(strings.TrimSpace(parts[1]))
	if !systolicOK || !diastolicOK || systolicAmbiguous || diastolicAmbiguous {
		return 0, 0, false
	}
	return systolic, diastolic, true
}

func roundInt(value float64) int {
	return int(math.Round(value))
}
