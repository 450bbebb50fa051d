package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Payload is the type-specific part of a record. Exactly one concrete
// payload struct exists per LogType.
type Payload interface {
	LogType() LogType
	Summary() string
}

type GlucoseUnit string

const (
	GlucoseMmolL GlucoseUnit = "mmol/L"
	GlucoseMgDL  GlucoseUnit = "mg/dL"
)

type MealContext string

const (
	MealContextNone       MealContext = ""
	MealContextFasting    MealContext = "fasting"
	MealContextBeforeMeal MealContext = "before_meal"
	MealContextAfterMeal  MealContext = "after_meal"
	MealContextBedtime    MealContext = "bedtime"
	MealContextRandom     MealContext = "random"
)

type WeightUnit string

const (
	WeightKg WeightUnit = "kg"
	WeightLb WeightUnit = "lb"
)

type GlucosePayload struct {
	Value       float64     `json:"value"`
	Unit        GlucoseUnit `json:"unit"`
	MealContext MealContext `json:"meal_context,omitempty"`
}

type FoodItem struct {
	Name     string  `json:"name"`
	Quantity string  `json:"quantity,omitempty"`
	CarbsG   float64 `json:"carbs_g"`
	ProteinG float64 `json:"protein_g"`
	FatG     float64 `json:"fat_g"`
	Calories float64 `json:"calories"`
}

type MealPayload struct {
	Items []FoodItem `json:"items"`
}

type MedicationPayload struct {
	MedicationID string `json:"medication_id"`
	Name         string `json:"name,omitempty"`
	Quantity     int    `json:"quantity"`
}

type BloodPressurePayload struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
	Pulse     int `json:"pulse,omitempty"`
}

type WeightPayload struct {
	Value float64    `json:"value"`
	Unit  WeightUnit `json:"unit"`
}

func (GlucosePayload) LogType() LogType       { return LogTypeGlucose }
func (MealPayload) LogType() LogType          { return LogTypeMeal }
func (MedicationPayload) LogType() LogType    { return LogTypeMedication }
func (BloodPressurePayload) LogType() LogType { return LogTypeBloodPressure }
func (WeightPayload) LogType() LogType        { return LogTypeWeight }

func (payload GlucosePayload) Summary() string {
	text := formatNumber(payload.Value) + " " + string(payload.Unit)
	if label := payload.MealContext.Label(); label != "" {
		text += " – " + label
	}
	return text
}

func (payload MealPayload) Summary() string {
	if len(payload.Items) == 0 {
		return "Meal"
	}
	names := make([]string, 0, len(payload.Items))
	for _, item := range payload.Items {
		names = append(names, item.Name)
	}
	return fmt.Sprintf("%s · %s g carbs", strings.Join(names, ", "), formatNumber(payload.TotalCarbs()))
}

func (payload MealPayload) TotalCarbs() float64 {
	total := 0.0
	for _, item := range payload.Items {
		total += item.CarbsG
	}
	return total
}

func (payload MedicationPayload) Summary() string {
	name := payload.Name
	if strings.TrimSpace(name) == "" {
		name = payload.MedicationID
	}
	return fmt.Sprintf("%d × %s", payload.Quantity, name)
}

func (payload BloodPressurePayload) Summary() string {
	text := fmt.Sprintf("%d/%d mmHg", payload.Systolic, payload.Diastolic)
	if payload.Pulse > 0 {
		text += fmt.Sprintf(", pulse %d", payload.Pulse)
	}
	return text
}

func (payload WeightPayload) Summary() string {
	return formatNumber(payload.Value) + " " + string(payload.Unit)
}

func (context MealContext) Label() string {
	if context == MealContextNone {
		return ""
	}
	return strings.ReplaceAll(string(context), "_", " ")
}

func (context MealContext) Valid() bool {
	switch context {
	case MealContextNone, MealContextFasting, MealContextBeforeMeal, MealContextAfterMeal, MealContextBedtime, MealContextRandom:
		return true
	default:
		return false
	}
}

func ParseGlucoseUnit(raw string) (GlucoseUnit, bool) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), " ", "")) {
	case "mmol/l", "mmol", "mmoll":
		return GlucoseMmolL, true
	case "mg/dl", "mg", "mgdl":
		return GlucoseMgDL, true
	default:
		return "", false
	}
}

func ParseWeightUnit(raw string) (WeightUnit, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "kg", "kgs", "kilogram", "kilograms":
		return WeightKg, true
	case "lb", "lbs", "pound", "pounds":
		return WeightLb, true
	default:
		return "", false
	}
}

func ParseMealContext(raw string) (MealContext, bool) {
	candidate := MealContext(strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), " ", "_")))
	if !candidate.Valid() {
		return MealContextNone, false
	}
	return candidate, true
}

// EmptyPayload returns the zero payload used for a freshly opened draft.
func EmptyPayload(logType LogType) Payload {
	switch logType {
	case LogTypeGlucose:
		return GlucosePayload{Unit: GlucoseMmolL}
	case LogTypeMeal:
		return MealPayload{Items: []FoodItem{}}
	case LogTypeMedication:
		return MedicationPayload{}
	case LogTypeBloodPressure:
		return BloodPressurePayload{}
	case LogTypeWeight:
		return WeightPayload{Unit: WeightKg}
	default:
		return nil
	}
}

// DecodePayload decodes the flat JSON form of a payload. An absent or null
// document decodes to the empty payload of the type.
func DecodePayload(logType LogType, raw json.RawMessage) (Payload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		payload := EmptyPayload(logType)
		if payload == nil {
			return nil, ErrUnknownLogType
		}
		return payload, nil
	}

	switch logType {
	case LogTypeGlucose:
		payload := GlucosePayload{}
		err := json.Unmarshal(trimmed, &payload)
		return payload, err
	case LogTypeMeal:
		payload := MealPayload{}
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return payload, err
		}
		if payload.Items == nil {
			payload.Items = []FoodItem{}
		}
		return payload, nil
	case LogTypeMedication:
		payload := MedicationPayload{}
		err := json.Unmarshal(trimmed, &payload)
		return payload, err
	case LogTypeBloodPressure:
		payload := BloodPressurePayload{}
		err := json.Unmarshal(trimmed, &payload)
		return payload, err
	case LogTypeWeight:
		payload := WeightPayload{}
		err := json.Unmarshal(trimmed, &payload)
		return payload, err
	default:
		return nil, ErrUnknownLogType
	}
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
