package bank

import (
	"encoding/csv"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ledgerline/importd/internal/domain"
)

// ParseCSV parses a CSV export into canonical transactions. Rows whose
// format is unknown or that an adapter rejects are logged and skipped; only
// a CSV that cannot be tokenized at all is an error (setup-fatal for the
// job).
func ParseCSV(csvContent, userID string, logger *zap.Logger) ([]Converted, error) {
	reader := csv.NewReader(strings.NewReader(csvContent))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &domain.ErrSetup{Stage: "csv-parse", Err: err}
	}
	if len(records) == 0 {
		return nil, &domain.ErrSetup{Stage: "csv-parse", Err: errors.New("empty csv")}
	}

	headers := records[0]
	adapter := DetectFormat(headers)

	var results []Converted
	for _, record := range records[1:] {
		if adapter == nil {
			logger.Warn("unknown bank format, skipping row",
				zap.Strings("headers", headers),
			)
			continue
		}

		row := make(Row, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[strings.ToLower(strings.TrimSpace(h))] = record[i]
			}
		}

		converted, err := adapter.Convert(row, userID)
		if err != nil {
			logger.Warn("skipping invalid row",
				zap.String("adapter", adapter.Name),
				zap.Error(err),
			)
			continue
		}
		results = append(results, converted)
	}

	if adapter != nil {
		logger.Info("parsed csv",
			zap.String("adapter", adapter.Name),
			zap.Int("rows", len(results)),
		)
	}
	return results, nil
}
