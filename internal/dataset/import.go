package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/civicgo/kaiwa/internal/models"
	"github.com/civicgo/kaiwa/internal/store"
)

// ImportResult summarizes one import.
type ImportResult struct {
	Examples  int
	Responses int
}

// ImportFile loads training examples (and, for xlsx, responses) from path
// into the store. The format is chosen by extension: .xlsx, .csv, or .json.
func ImportFile(ctx context.Context, s *store.ExampleStore, path string) (*ImportResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return importExcel(ctx, s, content)
	case ".csv":
		return importCSV(ctx, s, content)
	case ".json":
		return importJSON(ctx, s, content)
	default:
		return nil, fmt.Errorf("unsupported import format %q", filepath.Ext(path))
	}
}

// importExcel reads the "Examples" sheet (pattern, intent) and an optional
// "Responses" sheet (intent, response). A header row is skipped when its
// first cell is "pattern" or "intent".
func importExcel(ctx context.Context, s *store.ExampleStore, content []byte) (*ImportResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Examples")
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", "Examples", err)
	}
	var examples []models.TrainingExample
	for _, row := range rows {
		if len(row) < 2 || row[0] == "" || row[1] == "" {
			continue
		}
		if strings.EqualFold(row[0], "pattern") {
			continue
		}
		examples = append(examples, models.TrainingExample{Pattern: row[0], Intent: row[1]})
	}
	if err := s.AddExamples(ctx, examples); err != nil {
		return nil, err
	}
	result := &ImportResult{Examples: len(examples)}

	if respRows, err := f.GetRows("Responses"); err == nil {
		byIntent := make(map[string][]string)
		var order []string
		for _, row := range respRows {
			if len(row) < 2 || row[0] == "" || row[1] == "" || strings.EqualFold(row[0], "intent") {
				continue
			}
			if _, seen := byIntent[row[0]]; !seen {
				order = append(order, row[0])
			}
			byIntent[row[0]] = append(byIntent[row[0]], row[1])
		}
		for _, intent := range order {
			if err := s.SetResponses(ctx, intent, byIntent[intent]); err != nil {
				return nil, err
			}
			result.Responses += len(byIntent[intent])
		}
	}
	return result, nil
}

// importCSV reads pattern,intent rows; a header row is skipped.
func importCSV(ctx context.Context, s *store.ExampleStore, content []byte) (*ImportResult, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	var examples []models.TrainingExample
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		if len(row) < 2 || row[0] == "" || row[1] == "" || strings.EqualFold(row[0], "pattern") {
			continue
		}
		examples = append(examples, models.TrainingExample{Pattern: row[0], Intent: row[1]})
	}
	if err := s.AddExamples(ctx, examples); err != nil {
		return nil, err
	}
	return &ImportResult{Examples: len(examples)}, nil
}

// importJSON reads an array of {pattern, intent} objects.
func importJSON(ctx context.Context, s *store.ExampleStore, content []byte) (*ImportResult, error) {
	var examples []models.TrainingExample
	if err := json.Unmarshal(content, &examples); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	valid := examples[:0]
	for _, ex := range examples {
		if ex.Pattern != "" && ex.Intent != "" {
			valid = append(valid, ex)
		}
	}
	if err := s.AddExamples(ctx, valid); err != nil {
		return nil, err
	}
	return &ImportResult{Examples: len(valid)}, nil
}
