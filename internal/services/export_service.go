package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pharrrodev/type2lyfe-sub001/internal/models"
)

var ExportCSVHeaders = []string{
	"Date",
	"Time",
	"Type",
	"Source",
	"Summary",
	"Data",
}

type ExportLogReader interface {
	ListRange(userID uint, from *time.Time, until *time.Time) ([]models.LogEntry, error)
}

type ExportService struct {
	entries ExportLogReader
}

type ExportSummary struct {
	TotalEntries int
	HasData      bool
	DateFrom     string
	DateTo       string
}

type ExportCSVRow struct {
	Date    string
	Time    string
	Type    string
	Source  string
	Summary string
	Data    string
}

func NewExportService(entries ExportLogReader) *ExportService {
	return &ExportService{entries: entries}
}

// BuildCSVRows returns the user's logs in the range, oldest first, with
// times shown in location.
func (service *ExportService) BuildCSVRows(userID uint, exportRange ExportRange, location *time.Location) ([]ExportCSVRow, error) {
	if location == nil {
		location = time.UTC
	}
	entries, err := service.entries.ListRange(userID, exportRange.From, exportRange.Until)
	if err != nil {
		return nil, err
	}

	rows := make([]ExportCSVRow, 0, len(entries))
	for _, entry := range entries {
		converted, err := toRecord(entry)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(converted.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode log %s: %w", entry.ID, err)
		}

		local := entry.RecordedAt.In(location)
		rows = append(rows, ExportCSVRow{
			Date:    local.Format(exportDateLayout),
			Time:    local.Format("15:04"),
			Type:    converted.LogType.Label(),
			Source:  string(converted.Source),
			Summary: converted.Summary(),
			Data:    string(data),
		})
	}
	return rows, nil
}

func (service *ExportService) BuildSummary(userID uint, exportRange ExportRange, location *time.Location) (ExportSummary, error) {
	if location == nil {
		location = time.UTC
	}
	entries, err := service.entries.ListRange(userID, exportRange.From, exportRange.Until)
	if err != nil {
		return ExportSummary{}, err
	}
	if len(entries) == 0 {
		return ExportSummary{}, nil
	}

	return ExportSummary{
		TotalEntries: len(entries),
		HasData:      true,
		DateFrom:     entries[0].RecordedAt.In(location).Format(exportDateLayout),
		DateTo:       entries[len(entries)-1].RecordedAt.In(location).Format(exportDateLayout),
	}, nil
}

func (row ExportCSVRow) Columns() []string {
	return []string{row.Date, row.Time, row.Type, row.Source, row.Summary, row.Data}
}
