package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pharrrodev/type2lyfe-sub001/internal/record"
)

var (
	digitLetterBoundary = regexp.MustCompile(`(\d)([a-z])`)
	digitToken          = regexp.MustCompile(`^\d+(?:[.,]\d+)?$`)
	carbsPhrase         = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:g|grams?)\s+(?:of\s+)?carbs?\b`)
	mealFillerPrefix    = regexp.MustCompile(`^(?:(?:i|we)\s+|just\s+|had\s+|ate\s+|eaten\s+|eating\s+|for\s+(?:breakfast|lunch|dinner|a\s+snack)\s*)+`)
	mealSeparator       = regexp.MustCompile(`\s*(?:,|\band\b|\bplus\b)\s*`)
)

var smallNumberWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
}

var tensNumberWords = map[string]int{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

var mgdlWords = map[string]bool{"mg": true, "mgdl": true, "milligram": true, "milligrams": true}
var mmolWords = map[string]bool{"mmol": true, "mmols": true, "millimole": true, "millimoles": true, "mmoll": true}
var kgWords = map[string]bool{"kg": true, "kgs": true, "kilo": true, "kilos": true, "kilogram": true, "kilograms": true}
var lbWords = map[string]bool{"lb": true, "lbs": true, "pound": true, "pounds": true}

type contextPhrase struct {
	phrase  string
	context record.MealContext
}

var mealContextPhrases = []contextPhrase{
	{"before breakfast", record.MealContextBeforeMeal},
	{"before lunch", record.MealContextBeforeMeal},
	{"before dinner", record.MealContextBeforeMeal},
	{"before eating", record.MealContextBeforeMeal},
	{"before food", record.MealContextBeforeMeal},
	{"before meal", record.MealContextBeforeMeal},
	{"before a meal", record.MealContextBeforeMeal},
	{"pre meal", record.MealContextBeforeMeal},
	{"after breakfast", record.MealContextAfterMeal},
	{"after lunch", record.MealContextAfterMeal},
	{"after dinner", record.MealContextAfterMeal},
	{"after eating", record.MealContextAfterMeal},
	{"after food", record.MealContextAfterMeal},
	{"after meal", record.MealContextAfterMeal},
	{"after a meal", record.MealContextAfterMeal},
	{"post meal", record.MealContextAfterMeal},
	{"empty stomach", record.MealContextFasting},
	{"fasting", record.MealContextFasting},
	{"woke up", record.MealContextFasting},
	{"on waking", record.MealContextFasting},
	{"before bed", record.MealContextBedtime},
	{"before sleep", record.MealContextBedtime},
	{"bedtime", record.MealContextBedtime},
	{"random", record.MealContextRandom},
}

type numberMatch struct {
	value float64
	start int
	end   int
}

// Voice extracts a payload from a speech transcript with a bounded grammar:
// a number, optional unit synonyms and an optional context phrase.
func Voice(logType record.LogType, transcript string, catalog record.Catalog) (Result, error) {
	if !record.ModeSupported(logType, record.ModeVoice) {
		return Result{}, unsupported(logType, record.ModeVoice)
	}

	tokens := tokenize(transcript)
	numbers := scanNumbers(tokens)

	switch logType {
	case record.LogTypeGlucose:
		return voiceGlucose(tokens, numbers)
	case record.LogTypeWeight:
		return voiceWeight(tokens, numbers)
	case record.LogTypeBloodPressure:
		return voiceBloodPressure(tokens, numbers)
	case record.LogTypeMedication:
		return voiceMedication(tokens, numbers, catalog)
	case record.LogTypeMeal:
		return voiceMeal(transcript)
	default:
		return Result{}, record.ErrUnknownLogType
	}
}

func unparsable(logType record.LogType, message string) error {
	return &NormalizationError{Kind: KindUnparsableTranscript, LogType: logType, Message: message}
}

func voiceGlucose(tokens []string, numbers []numberMatch) (Result, error) {
	if len(numbers) == 0 {
		return Result{}, unparsable(record.LogTypeGlucose, "no number found in transcript")
	}
	value := numbers[0].value

	result := Result{}
	unit, found := record.GlucoseUnit(""), false
	for _, token := range tokens {
		if mgdlWords[token] {
			unit, found = record.GlucoseMgDL, true
			break
		}
		if mmolWords[token] {
			unit, found = record.GlucoseMmolL, true
			break
		}
	}
	if !found {
		unit = inferGlucoseUnit(value)
		result.warn(WarningDefaultedUnit, "unit", "unit inferred from the value")
	}

	result.Payload = record.GlucosePayload{
		Value:       value,
		Unit:        unit,
		MealContext: detectMealContext(tokens),
	}
	return result, nil
}

func voiceWeight(tokens []string, numbers []numberMatch) (Result, error) {
	if len(numbers) == 0 {
		return Result{}, unparsable(record.LogTypeWeight, "no number found in transcript")
	}

	result := Result{}
	unit, found := record.WeightKg, false
	for _, token := range tokens {
		if kgWords[token] {
			unit, found = record.WeightKg, true
			break
		}
		if lbWords[token] {
			unit, found = record.WeightLb, true
			break
		}
	}
	if !found {
		result.warn(WarningDefaultedUnit, "unit", "unit defaulted to kg")
	}
	result.Payload = record.WeightPayload{Value: numbers[0].value, Unit: unit}
	return result, nil
}

func voiceBloodPressure(tokens []string, numbers []numberMatch) (Result, error) {
	pulseIndex := -1
	for index, token := range tokens {
		switch token {
		case "pulse", "heart", "hr":
			for position, number := range numbers {
				if number.start > index {
					pulseIndex = position
					break
				}
			}
		case "bpm":
			for position, number := range numbers {
				if number.end <= index {
					pulseIndex = position
				}
			}
		}
		if pulseIndex >= 0 {
			break
		}
	}

	pressure := make([]numberMatch, 0, len(numbers))
	for position, number := range numbers {
		if position != pulseIndex {
			pressure = append(pressure, number)
		}
	}
	if len(pressure) < 2 {
		return Result{}, unparsable(record.LogTypeBloodPressure, "need systolic and diastolic values")
	}

	pulse := 0
	switch {
	case pulseIndex >= 0:
		pulse = roundInt(numbers[pulseIndex].value)
	case len(pressure) > 2:
		pulse = roundInt(pressure[2].value)
	}

	return Result{Payload: record.BloodPressurePayload{
		Systolic:  roundInt(pressure[0].value),
		Diastolic: roundInt(pressure[1].value),
		Pulse:     pulse,
	}}, nil
}

func voiceMedication(tokens []string, numbers []numberMatch, catalog record.Catalog) (Result, error) {
	text := strings.Join(tokens, " ")
	medication, matched := catalog.MatchName(text)
	if matched {
		// Strength digits inside the name ("metformin 500") are not a quantity.
		name := strings.ToLower(medication.Name)
		text = " " + text + " "
		text = strings.Replace(text, " "+name+"s ", " ", 1)
		text = strings.Replace(text, " "+name+" ", " ", 1)
		numbers = scanNumbers(strings.Fields(text))
	}
	if !matched && len(numbers) == 0 {
		return Result{}, unparsable(record.LogTypeMedication, "no medication or quantity found in transcript")
	}

	result := Result{}
	quantity := 1
	if len(numbers) > 0 {
		quantity = roundInt(numbers[0].value)
	}
	payload := record.MedicationPayload{Quantity: quantity}
	if matched {
		payload.MedicationID = medication.ID
		payload.Name = medication.Name
	} else {
		result.warn(WarningPartialExtraction, "medication_id", "medication name was not recognized")
	}
	result.Payload = payload
	return result, nil
}

func voiceMeal(transcript string) (Result, error) {
	text := strings.ToLower(strings.TrimSpace(transcript))
	text = strings.TrimRight(text, ".!?")
	text = mealFillerPrefix.ReplaceAllString(text, "")

	result := Result{}
	items := make([]record.FoodItem, 0)
	for _, part := range mealSeparator.Split(text, -1) {
		item := record.FoodItem{}
		hasCarbs := false
		if match := carbsPhrase.FindStringSubmatch(part); match != nil {
			item.CarbsG, _ = strconv.ParseFloat(match[1], 64)
			part = carbsPhrase.ReplaceAllString(part, "")
			hasCarbs = true
		}
		item.Name = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), " with"))
		if item.Name == "" {
			// "toast, 30 grams of carbs" attaches to the previous food.
			if hasCarbs && len(items) > 0 && items[len(items)-1].CarbsG == 0 {
				items[len(items)-1].CarbsG = item.CarbsG
			}
			continue
		}
		items = append(items, item)
	}
	for _, item := range items {
		if item.CarbsG == 0 {
			result.warn(WarningPartialExtraction, "items", "nutrition values were not dictated")
		}
	}
	if len(items) == 0 {
		return Result{}, unparsable(record.LogTypeMeal, "no food found in transcript")
	}
	result.Payload = record.MealPayload{Items: items}
	return result, nil
}

func tokenize(transcript string) []string {
	text := strings.ToLower(transcript)
	text = digitLetterBoundary.ReplaceAllString(text, "$1 $2")
	text = strings.NewReplacer(
		"/", " / ",
		"-", " ",
		"?", " ",
		"!", " ",
		";", " ",
		":", " ",
		"(", " ",
		")", " ",
	).Replace(text)

	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		field = strings.Trim(field, ".,")
		if field != "" {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

func scanNumbers(tokens []string) []numberMatch {
	numbers := make([]numberMatch, 0)
	for index := 0; index < len(tokens); {
		token := tokens[index]
		if digitToken.MatchString(token) {
			value, _ := strconv.ParseFloat(strings.ReplaceAll(token, ",", "."), 64)
			end := index + 1
			if decimals, next, ok := scanDecimals(tokens, end); ok && !strings.ContainsAny(token, ".,") {
				value, _ = strconv.ParseFloat(token+"."+decimals, 64)
				end = next
			}
			numbers = append(numbers, numberMatch{value: value, start: index, end: end})
			index = end
			continue
		}
		if isNumberWord(token) {
			value, end := parseNumberWords(tokens, index)
			numbers = append(numbers, numberMatch{value: value, start: index, end: end})
			index = end
			continue
		}
		index++
	}
	return numbers
}

func isNumberWord(token string) bool {
	_, small := smallNumberWords[token]
	_, tens := tensNumberWords[token]
	return small || tens || token == "hundred"
}

// parseNumberWords reads "one hundred and forty two" or "eight point five".
func parseNumberWords(tokens []string, start int) (float64, int) {
	total := 0
	index := start
	previous := ""
scan:
	for index < len(tokens) {
		token := tokens[index]
		switch {
		case smallNumberWords[token] > 0 || token == "zero":
			total += smallNumberWords[token]
		case tensNumberWords[token] > 0:
			total += tensNumberWords[token]
		case token == "hundred":
			if total == 0 {
				total = 1
			}
			total *= 100
		case token == "and" && previous == "hundred" && index+1 < len(tokens) && isNumberWord(tokens[index+1]):
		default:
			break scan
		}
		previous = token
		index++
	}

	value := float64(total)
	if decimals, next, ok := scanDecimals(tokens, index); ok {
		value, _ = strconv.ParseFloat(strconv.Itoa(total)+"."+decimals, 64)
		index = next
	}
	return value, index
}

// scanDecimals reads "point five" / "point 5" digit by digit.
func scanDecimals(tokens []string, index int) (string, int, bool) {
	if index >= len(tokens) || tokens[index] != "point" {
		return "", index, false
	}
	digits := strings.Builder{}
	next := index + 1
	for next < len(tokens) {
		token := tokens[next]
		if value, ok := smallNumberWords[token]; ok && value < 10 {
			digits.WriteString(strconv.Itoa(value))
		} else if token == "oh" {
			digits.WriteString("0")
		} else if isDigits(token) {
			digits.WriteString(token)
		} else {
			break
		}
		next++
	}
	if digits.Len() == 0 {
		return "", index, false
	}
	return digits.String(), next, true
}

func isDigits(token string) bool {
	if token == "" {
		return false
	}
	for _, char := range token {
		if char < '0' || char > '9' {
			return false
		}
	}
	return true
}

func detectMealContext(tokens []string) record.MealContext {
	text := " " + strings.Join(tokens, " ") + " "
	for _, candidate := range mealContextPhrases {
		if strings.Contains(text, " "+candidate.phrase+" ") {
			return candidate.context
		}
	}
	return record.MealContextNone
}
