package services

import (
	"errors"
	"strings"
	"time"
)

const exportDateLayout = "2006-01-02"

var (
	ErrExportFromDateInvalid = errors.New("export invalid from date")
	ErrExportToDateInvalid   = errors.New("export invalid to date")
	ErrExportRangeInvalid    = errors.New("export invalid range")
)

// ExportRange bounds an export by local calendar days. From is inclusive,
// Until is the exclusive start of the day after the last one. A nil bound
// is open.
type ExportRange struct {
	From  *time.Time
	Until *time.Time
}

func ParseExportRange(rawFrom string, rawTo string, location *time.Location) (ExportRange, error) {
	if location == nil {
		location = time.UTC
	}
	fromRaw := strings.TrimSpace(rawFrom)
	toRaw := strings.TrimSpace(rawTo)

	exportRange := ExportRange{}
	if fromRaw != "" {
		parsedFrom, err := time.ParseInLocation(exportDateLayout, fromRaw, location)
		if err != nil {
			return ExportRange{}, ErrExportFromDateInvalid
		}
		exportRange.From = &parsedFrom
	}
	if toRaw != "" {
		parsedTo, err := time.ParseInLocation(exportDateLayout, toRaw, location)
		if err != nil {
			return ExportRange{}, ErrExportToDateInvalid
		}
		until := parsedTo.AddDate(0, 0, 1)
		exportRange.Until = &until
	}

	if exportRange.From != nil && exportRange.Until != nil && !exportRange.Until.After(*exportRange.From) {
		return ExportRange{}, ErrExportRangeInvalid
	}
	return exportRange, nil
}
