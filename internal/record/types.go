package record

import (
	"errors"
	"strings"
)

type LogType string

const (
	LogTypeGlucose       LogType = "glucose"
	LogTypeMeal          LogType = "meal"
	LogTypeMedication    LogType = "medication"
	LogTypeBloodPressure LogType = "blood_pressure"
	LogTypeWeight        LogType = "weight"
)

type CaptureMode string

const (
	ModeManual CaptureMode = "manual"
	ModePhoto  CaptureMode = "photo"
	ModeVoice  CaptureMode = "voice"
)

var (
	ErrUnknownLogType     = errors.New("unknown log type")
	ErrUnknownCaptureMode = errors.New("unknown capture mode")
)

var allLogTypes = []LogType{
	LogTypeGlucose,
	LogTypeMeal,
	LogTypeMedication,
	LogTypeBloodPressure,
	LogTypeWeight,
}

var allCaptureModes = []CaptureMode{ModeManual, ModePhoto, ModeVoice}

// modeTable is the static LogType x CaptureMode validity table.
var modeTable = map[LogType]map[CaptureMode]bool{
	LogTypeGlucose:       {ModeManual: true, ModePhoto: true, ModeVoice: true},
	LogTypeMeal:          {ModeManual: true, ModePhoto: true, ModeVoice: true},
	LogTypeMedication:    {ModeManual: true, ModePhoto: false, ModeVoice: true},
	LogTypeBloodPressure: {ModeManual: true, ModePhoto: true, ModeVoice: true},
	LogTypeWeight:        {ModeManual: true, ModePhoto: true, ModeVoice: true},
}

func AllLogTypes() []LogType {
	return append([]LogType(nil), allLogTypes...)
}

func ParseLogType(raw string) (LogType, error) {
	candidate := LogType(strings.ToLower(strings.TrimSpace(raw)))
	candidate = LogType(strings.ReplaceAll(string(candidate), "-", "_"))
	if _, ok := modeTable[candidate]; ok {
		return candidate, nil
	}
	return "", ErrUnknownLogType
}

func ParseCaptureMode(raw string) (CaptureMode, error) {
	candidate := CaptureMode(strings.ToLower(strings.TrimSpace(raw)))
	for _, mode := range allCaptureModes {
		if candidate == mode {
			return mode, nil
		}
	}
	return "", ErrUnknownCaptureMode
}

func (logType LogType) Valid() bool {
	_, ok := modeTable[logType]
	return ok
}

// Slug is the URL form used by the analyze endpoints ("blood-pressure").
func (logType LogType) Slug() string {
	return strings.ReplaceAll(string(logType), "_", "-")
}

func (logType LogType) Label() string {
	switch logType {
	case LogTypeGlucose:
		return "Glucose"
	case LogTypeMeal:
		return "Meal"
	case LogTypeMedication:
		return "Medication"
	case LogTypeBloodPressure:
		return "Blood pressure"
	case LogTypeWeight:
		return "Weight"
	default:
		return string(logType)
	}
}

func ModeSupported(logType LogType, mode CaptureMode) bool {
	return modeTable[logType][mode]
}

// ModesFor lists the capture modes offered for a log type, in display order.
func ModesFor(logType LogType) []CaptureMode {
	modes := make([]CaptureMode, 0, len(allCaptureModes))
	for _, mode := range allCaptureModes {
		if ModeSupported(logType, mode) {
			modes = append(modes, mode)
		}
	}
	return modes
}
