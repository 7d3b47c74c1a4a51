package atolabels

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
)

const (
	numFields = 4
	colCode   = 0
	colName   = 1
	colKind   = 2
	colDesc   = 3
)

// ReadLabels reads ato-labels.csv.
func ReadLabels(r io.Reader) ([]model.ATOLabel, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading labels CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var labels []model.ATOLabel
	for i, rec := range records[1:] {
		l, err := UnmarshalLabel(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		labels = append(labels, l)
	}
	return labels, nil
}

// WriteLabels writes ato-labels.csv.
func WriteLabels(w io.Writer, labels []model.ATOLabel) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"code", "name", "kind", "description"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, l := range labels {
		if err := cw.Write(MarshalLabel(l)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// MarshalLabel converts an ATOLabel to a CSV row.
func MarshalLabel(l model.ATOLabel) []string {
	row := make([]string, numFields)
	row[colCode] = l.Code
	row[colName] = l.Name
	row[colKind] = string(l.Kind)
	row[colDesc] = l.Description
	return row
}

// UnmarshalLabel converts a CSV row to an ATOLabel.
func UnmarshalLabel(record []string) (model.ATOLabel, error) {
	if len(record) != numFields {
		return model.ATOLabel{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}
	if record[colCode] == "" {
		return model.ATOLabel{}, fmt.Errorf("empty label code")
	}

	kind := model.LabelKind(record[colKind])
	if kind != model.LabelKindDeduction && kind != model.LabelKindIncome {
		return model.ATOLabel{}, fmt.Errorf("unknown label kind %q", record[colKind])
	}

	return model.ATOLabel{
		Code:        record[colCode],
		Name:        record[colName],
		Kind:        kind,
		Description: record[colDesc],
	}, nil
}
