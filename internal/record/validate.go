package record

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	MaxMedicationQuantity = 100
	MaxMealItems          = 50
	MaxFoodNameLength     = 120
)

// ErrSetupRequired means no medication is configured yet. It is not a
// validation failure: the user has to configure medications first.
var ErrSetupRequired = errors.New("medication setup required")

type ValidationError struct {
	Field   string
	Message string
}

func (err *ValidationError) Error() string {
	if err.Field == "" {
		return err.Message
	}
	return err.Field + ": " + err.Message
}

func invalid(field string, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type valueRange struct {
	min float64
	max float64
}

var glucoseRanges = map[GlucoseUnit]valueRange{
	GlucoseMmolL: {min: 1.0, max: 35.0},
	GlucoseMgDL:  {min: 18, max: 630},
}

var weightRanges = map[WeightUnit]valueRange{
	WeightKg: {min: 20, max: 400},
	WeightLb: {min: 44, max: 880},
}

// Validate checks a payload against the per-type rules and returns the
// normalized payload. The catalog is only consulted for medication logs.
func Validate(logType LogType, payload Payload, catalog Catalog) (Payload, error) {
	if !logType.Valid() {
		return nil, ErrUnknownLogType
	}
	if payload == nil {
		return nil, invalid("payload", "is required")
	}
	if payload.LogType() != logType {
		return nil, invalid("log_type", "payload is %s, expected %s", payload.LogType(), logType)
	}

	switch typed := payload.(type) {
	case GlucosePayload:
		return validateGlucose(typed)
	case MealPayload:
		return validateMeal(typed)
	case MedicationPayload:
		return validateMedication(typed, catalog)
	case BloodPressurePayload:
		return validateBloodPressure(typed)
	case WeightPayload:
		return validateWeight(typed)
	default:
		return nil, invalid("payload", "unsupported payload %T", payload)
	}
}

func validateGlucose(payload GlucosePayload) (Payload, error) {
	unit, ok := ParseGlucoseUnit(string(payload.Unit))
	if !ok {
		return nil, invalid("unit", "must be mmol/L or mg/dL")
	}
	payload.Unit = unit

	if !isFinite(payload.Value) || payload.Value <= 0 {
		return nil, invalid("value", "must be a positive number")
	}
	bounds := glucoseRanges[unit]
	if payload.Value < bounds.min || payload.Value > bounds.max {
		return nil, invalid("value", "must be between %s and %s %s", formatNumber(bounds.min), formatNumber(bounds.max), unit)
	}
	if !payload.MealContext.Valid() {
		return nil, invalid("meal_context", "unknown meal context %q", payload.MealContext)
	}
	return payload, nil
}

func validateMeal(payload MealPayload) (Payload, error) {
	if len(payload.Items) == 0 {
		return nil, invalid("items", "add at least one food item")
	}
	if len(payload.Items) > MaxMealItems {
		return nil, invalid("items", "at most %d items", MaxMealItems)
	}

	items := make([]FoodItem, 0, len(payload.Items))
	for index, item := range payload.Items {
		field := fmt.Sprintf("items[%d]", index)
		item.Name = strings.TrimSpace(item.Name)
		item.Quantity = strings.TrimSpace(item.Quantity)
		if item.Name == "" {
			return nil, invalid(field+".name", "is required")
		}
		if len([]rune(item.Name)) > MaxFoodNameLength {
			return nil, invalid(field+".name", "is too long")
		}
		macros := map[string]float64{
			"carbs_g":   item.CarbsG,
			"protein_g": item.ProteinG,
			"fat_g":     item.FatG,
			"calories":  item.Calories,
		}
		for name, value := range macros {
			if !isFinite(value) || value < 0 {
				return nil, invalid(field+"."+name, "must be zero or more")
			}
		}
		items = append(items, item)
	}
	payload.Items = items
	return payload, nil
}

func validateMedication(payload MedicationPayload, catalog Catalog) (Payload, error) {
	if catalog.Empty() {
		return nil, ErrSetupRequired
	}
	if payload.Quantity <= 0 {
		return nil, invalid("quantity", "must be a positive whole number")
	}
	if payload.Quantity > MaxMedicationQuantity {
		return nil, invalid("quantity", "must be at most %d", MaxMedicationQuantity)
	}

	medicationID := strings.TrimSpace(payload.MedicationID)
	if medicationID == "" {
		return nil, invalid("medication_id", "choose a medication")
	}
	medication, ok := catalog.Lookup(medicationID)
	if !ok {
		return nil, invalid("medication_id", "unknown medication")
	}
	payload.MedicationID = medication.ID
	payload.Name = medication.Name
	return payload, nil
}

func validateBloodPressure(payload BloodPressurePayload) (Payload, error) {
	if payload.Systolic < 60 || payload.Systolic > 260 {
		return nil, invalid("systolic", "must be between 60 and 260")
	}
	if payload.Diastolic < 30 || payload.Diastolic > 180 {
		return nil, invalid("diastolic", "must be between 30 and 180")
	}
	if payload.Systolic <= payload.Diastolic {
		return nil, invalid("diastolic", "must be lower than systolic")
	}
	if payload.Pulse != 0 && (payload.Pulse < 30 || payload.Pulse > 250) {
		return nil, invalid("pulse", "must be between 30 and 250")
	}
	return payload, nil
}

func validateWeight(payload WeightPayload) (Payload, error) {
	unit, ok := ParseWeightUnit(string(payload.Unit))
	if !ok {
		return nil, invalid("unit", "must be kg or lb")
	}
	payload.Unit = unit

	if !isFinite(payload.Value) || payload.Value <= 0 {
		return nil, invalid("value", "must be a positive number")
	}
	bounds := weightRanges[unit]
	if payload.Value < bounds.min || payload.Value > bounds.max {
		return nil, invalid("value", "must be between %s and %s %s", formatNumber(bounds.min), formatNumber(bounds.max), unit)
	}
	return payload, nil
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
