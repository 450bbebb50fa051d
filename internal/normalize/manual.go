package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pharrrodev/type2lyfe-sub001/internal/record"
)

// Form carries the raw strings of the manual entry form. Only the fields of
// the selected log type are read.
type Form struct {
	Value        string
	Unit         string
	MealContext  string
	MedicationID string
	Quantity     string
	Systolic     string
	Diastolic    string
	Pulse        string
	Items        []FoodItemForm
}

type FoodItemForm struct {
	Name     string
	Quantity string
	Carbs    string
	Protein  string
	Fat      string
	Calories string
}

func Manual(logType record.LogType, form Form) (Result, error) {
	switch logType {
	case record.LogTypeGlucose:
		return manualGlucose(form)
	case record.LogTypeMeal:
		return manualMeal(form)
	case record.LogTypeMedication:
		return manualMedication(form)
	case record.LogTypeBloodPressure:
		return manualBloodPressure(form)
	case record.LogTypeWeight:
		return manualWeight(form)
	default:
		return Result{}, record.ErrUnknownLogType
	}
}

func manualGlucose(form Form) (Result, error) {
	value, err := parseDecimalField("value", form.Value, true)
	if err != nil {
		return Result{}, err
	}

	result := Result{}
	unit, ok := record.ParseGlucoseUnit(form.Unit)
	if !ok {
		if strings.TrimSpace(form.Unit) != "" {
			return Result{}, &record.ValidationError{Field: "unit", Message: "must be mmol/L or mg/dL"}
		}
		unit = inferGlucoseUnit(value)
		result.warn(WarningDefaultedUnit, "unit", "unit inferred from the value")
	}

	context, ok := record.ParseMealContext(form.MealContext)
	if !ok {
		return Result{}, &record.ValidationError{Field: "meal_context", Message: "unknown meal context"}
	}

	result.Payload = record.GlucosePayload{Value: value, Unit: unit, MealContext: context}
	return result, nil
}

func manualMeal(form Form) (Result, error) {
	items := make([]record.FoodItem, 0, len(form.Items))
	for index, itemForm := range form.Items {
		field := fmt.Sprintf("items[%d]", index)
		if strings.TrimSpace(itemForm.Name) == "" && isBlankItem(itemForm) {
			continue
		}
		carbs, err := parseDecimalField(field+".carbs_g", itemForm.Carbs, false)
		if err != nil {
			return Result{}, err
		}
		protein, err := parseDecimalField(field+".protein_g", itemForm.Protein, false)
		if err != nil {
			return Result{}, err
		}
		fat, err := parseDecimalField(field+".fat_g", itemForm.Fat, false)
		if err != nil {
			return Result{}, err
		}
		calories, err := parseDecimalField(field+".calories", itemForm.Calories, false)
		if err != nil {
			return Result{}, err
		}
		items = append(items, record.FoodItem{
			Name:     strings.TrimSpace(itemForm.Name),
			Quantity: strings.TrimSpace(itemForm.Quantity),
			CarbsG:   carbs,
			ProteinG: protein,
			FatG:     fat,
			Calories: calories,
		})
	}
	return Result{Payload: record.MealPayload{Items: items}}, nil
}

func manualMedication(form Form) (Result, error) {
	quantity := 1
	if strings.TrimSpace(form.Quantity) != "" {
		parsed, err := parseWholeField("quantity", form.Quantity)
		if err != nil {
			return Result{}, err
		}
		quantity = parsed
	}
	return Result{Payload: record.MedicationPayload{
		MedicationID: strings.TrimSpace(form.MedicationID),
		Quantity:     quantity,
	}}, nil
}

func manualBloodPressure(form Form) (Result, error) {
	systolic, err := parseWholeField("systolic", form.Systolic)
	if err != nil {
		return Result{}, err
	}
	diastolic, err := parseWholeField("diastolic", form.Diastolic)
	if err != nil {
		return Result{}, err
	}
	pulse := 0
	if strings.TrimSpace(form.Pulse) != "" {
		pulse, err = parseWholeField("pulse", form.Pulse)
		if err != nil {
			return Result{}, err
		}
	}
	return Result{Payload: record.BloodPressurePayload{Systolic: systolic, Diastolic: diastolic, Pulse: pulse}}, nil
}

func manualWeight(form Form) (Result, error) {
	value, err := parseDecimalField("value", form.Value, true)
	if err != nil {
		return Result{}, err
	}
	result := Result{}
	unit, ok := record.ParseWeightUnit(form.Unit)
	if !ok {
		if strings.TrimSpace(form.Unit) != "" {
			return Result{}, &record.ValidationError{Field: "unit", Message: "must be kg or lb"}
		}
		unit = record.WeightKg
		result.warn(WarningDefaultedUnit, "unit", "unit defaulted to kg")
	}
	result.Payload = record.WeightPayload{Value: value, Unit: unit}
	return result, nil
}

func parseDecimalField(field string, raw string, required bool) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		if required {
			return 0, &record.ValidationError{Field: field, Message: "is required"}
		}
		return 0, nil
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(trimmed, ",", "."), 64)
	if err != nil {
		return 0, &record.ValidationError{Field: field, Message: "must be a number"}
	}
	return value, nil
}

func parseWholeField(field string, raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, &record.ValidationError{Field: field, Message: "is required"}
	}
	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, &record.ValidationError{Field: field, Message: "must be a whole number"}
	}
	return value, nil
}

func isBlankItem(item FoodItemForm) bool {
	for _, value := range []string{item.Quantity, item.Carbs, item.Protein, item.Fat, item.Calories} {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
