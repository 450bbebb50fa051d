// Package normalize turns the three capture inputs (typed form fields,
// vision-model JSON and speech transcripts) into record payloads. Every
// function is pure: the AI services are called before a normalizer runs.
package normalize

import (
	"fmt"

	"github.com/pharrrodev/type2lyfe-sub001/internal/record"
)

type ErrorKind string

const (
	KindUnparsableTranscript ErrorKind = "unparsable_transcript"
	KindUnusableAnalysis     ErrorKind = "unusable_analysis"
	KindModeUnsupported      ErrorKind = "mode_unsupported"
)

// NormalizationError means the input cannot produce a draft at all and the
// user should repeat the capture or switch to manual entry.
type NormalizationError struct {
	Kind    ErrorKind
	LogType record.LogType
	Message string
}

func (err *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s: %s: %s", err.LogType, err.Kind, err.Message)
}

func (err *NormalizationError) UserMessage() string {
	switch err.Kind {
	case KindUnparsableTranscript:
		return "We couldn't hear a value. Please repeat or switch to manual."
	case KindUnusableAnalysis:
		return "The photo couldn't be analyzed. Please retake it or switch to manual."
	default:
		return "This capture mode isn't available for this entry."
	}
}

type WarningCode string

const (
	// WarningPartialExtraction marks a draft built from incomplete AI output;
	// the UI asks for confirmation instead of trusting it silently.
	WarningPartialExtraction WarningCode = "partial_extraction"
	WarningLowConfidence     WarningCode = "low_confidence"
	WarningDefaultedUnit     WarningCode = "defaulted_unit"
)

type Warning struct {
	Code    WarningCode
	Field   string
	Message string
}

type Result struct {
	Payload  record.Payload
	Warnings []Warning
}

func (result Result) HasWarning(code WarningCode) bool {
	for _, warning := range result.Warnings {
		if warning.Code == code {
			return true
		}
	}
	return false
}

func (result *Result) warn(code WarningCode, field string, message string) {
	for _, warning := range result.Warnings {
		if warning.Code == code && warning.Field == field {
			return
		}
	}
	result.Warnings = append(result.Warnings, Warning{Code: code, Field: field, Message: message})
}

func unsupported(logType record.LogType, mode record.CaptureMode) error {
	return &NormalizationError{
		Kind:    KindModeUnsupported,
		LogType: logType,
		Message: fmt.Sprintf("%s capture is not available", mode),
	}
}

// inferGlucoseUnit picks the unit from the magnitude when none was given:
// no plausible mmol/L reading is above 35.
func inferGlucoseUnit(value float64) record.GlucoseUnit {
	if value > 35 {
		return record.GlucoseMgDL
	}
	return record.GlucoseMmolL
}

func (result *Result) flagAmbiguous(field string, ambiguous bool) {
	if ambiguous {
		result.warn(WarningPartialExtraction, field, "the value could not be read unambiguously, please check it")
	}
}
