package record

import (
	"errors"
	"math"
	"testing"
)

func TestValidateGlucose(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		payload   GlucosePayload
		wantField string
	}{
		{name: "mmol in range", payload: GlucosePayload{Value: 8.5, Unit: GlucoseMmolL, MealContext: MealContextBeforeMeal}},
		{name: "mg/dl in range", payload: GlucosePayload{Value: 142, Unit: "mg/dl"}},
		{name: "zero value", payload: GlucosePayload{Value: 0, Unit: GlucoseMmolL}, wantField: "value"},
		{name: "nan value", payload: GlucosePayload{Value: math.NaN(), Unit: GlucoseMmolL}, wantField: "value"},
		{name: "mg/dl value in mmol", payload: GlucosePayload{Value: 142, Unit: GlucoseMmolL}, wantField: "value"},
		{name: "unknown unit", payload: GlucosePayload{Value: 5, Unit: "g/L"}, wantField: "unit"},
		{name: "unknown context", payload: GlucosePayload{Value: 5, Unit: GlucoseMmolL, MealContext: "brunch"}, wantField: "meal_context"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			normalized, err := Validate(LogTypeGlucose, test.payload, Catalog{})
			if test.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				if _, ok := normalized.(GlucosePayload); !ok {
					t.Fatalf("expected GlucosePayload, got %T", normalized)
				}
				return
			}

			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if validationErr.Field != test.wantField {
				t.Fatalf("expected field %q, got %q", test.wantField, validationErr.Field)
			}
		})
	}
}

func TestValidateNormalizesGlucoseUnit(t *testing.T) {
	normalized, err := Validate(LogTypeGlucose, GlucosePayload{Value: 142, Unit: "mg"}, Catalog{})
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if unit := normalized.(GlucosePayload).Unit; unit != GlucoseMgDL {
		t.Fatalf("expected unit %q, got %q", GlucoseMgDL, unit)
	}
}

func TestValidateRejectsCrossTypePayload(t *testing.T) {
	_, err := Validate(LogTypeWeight, GlucosePayload{Value: 5, Unit: GlucoseMmolL}, Catalog{})
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "log_type" {
		t.Fatalf("expected log_type validation error, got %v", err)
	}
}

func TestValidateMedicationRequiresSetup(t *testing.T) {
	_, err := Validate(LogTypeMedication, MedicationPayload{MedicationID: "m1", Quantity: 1}, Catalog{})
	if !errors.Is(err, ErrSetupRequired) {
		t.Fatalf("expected ErrSetupRequired, got %v", err)
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		t.Fatal("setup required must not be reported as a validation error")
	}
}

func TestValidateMedication(t *testing.T) {
	catalog := NewCatalog([]Medication{{ID: "m1", Name: "Metformin"}})

	normalized, err := Validate(LogTypeMedication, MedicationPayload{MedicationID: "m1", Quantity: 2}, catalog)
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if name := normalized.(MedicationPayload).Name; name != "Metformin" {
		t.Fatalf("expected medication name to be filled, got %q", name)
	}

	if _, err := Validate(LogTypeMedication, MedicationPayload{MedicationID: "m1", Quantity: 0}, catalog); err == nil {
		t.Fatal("expected error for zero quantity")
	}
	if _, err := Validate(LogTypeMedication, MedicationPayload{MedicationID: "missing", Quantity: 1}, catalog); err == nil {
		t.Fatal("expected error for unknown medication")
	}
}

func TestValidateBloodPressure(t *testing.T) {
	if _, err := Validate(LogTypeBloodPressure, BloodPressurePayload{Systolic: 120, Diastolic: 80, Pulse: 70}, Catalog{}); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if _, err := Validate(LogTypeBloodPressure, BloodPressurePayload{Systolic: 80, Diastolic: 120}, Catalog{}); err == nil {
		t.Fatal("expected error when diastolic exceeds systolic")
	}
	if _, err := Validate(LogTypeBloodPressure, BloodPressurePayload{Systolic: 120, Diastolic: 80, Pulse: 10}, Catalog{}); err == nil {
		t.Fatal("expected error for implausible pulse")
	}
}

func TestValidateMealTrimsItems(t *testing.T) {
	normalized, err := Validate(LogTypeMeal, MealPayload{Items: []FoodItem{{Name: "  toast ", CarbsG: 30}}}, Catalog{})
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if name := normalized.(MealPayload).Items[0].Name; name != "toast" {
		t.Fatalf("expected trimmed name, got %q", name)
	}

	if _, err := Validate(LogTypeMeal, MealPayload{Items: []FoodItem{}}, Catalog{}); err == nil {
		t.Fatal("expected error for empty meal")
	}
	if _, err := Validate(LogTypeMeal, MealPayload{Items: []FoodItem{{Name: "x", FatG: -1}}}, Catalog{}); err == nil {
		t.Fatal("expected error for negative macro")
	}
}

func TestValidateWeight(t *testing.T) {
	if _, err := Validate(LogTypeWeight, WeightPayload{Value: 72.4, Unit: WeightKg}, Catalog{}); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if _, err := Validate(LogTypeWeight, WeightPayload{Value: 500, Unit: WeightKg}, Catalog{}); err == nil {
		t.Fatal("expected error for out of range weight")
	}
}
