package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jgoulah/energydash/pkg/models"
)

// ErrMissingColumn is returned when a required header is absent
var ErrMissingColumn = errors.New("missing required column")

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"01/02/2006",
}

// ParseDate parses a calendar date in any of the accepted layouts
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// LoadEnergy reads the energy consumption table (date, energy_consumption)
func LoadEnergy(path string) ([]models.EnergyRecord, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	records, err := parseEnergy(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// LoadAppliances reads the appliance table (appliance, power_consumption[, date])
func LoadAppliances(path string) ([]models.ApplianceRecord, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	records, err := parseAppliances(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Load reads both tables and builds a Dataset
func Load(energyPath, appliancePath string) (*Dataset, error) {
	energy, err := LoadEnergy(energyPath)
	if err != nil {
		return nil, fmt.Errorf("loading energy data: %w", err)
	}
	appliances, err := LoadAppliances(appliancePath)
	if err != nil {
		return nil, fmt.Errorf("loading appliance data: %w", err)
	}
	return New(energy, appliances), nil
}

// readRows returns every row of a CSV file, or of the first sheet of an .xlsx workbook
func readRows(path string) ([][]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readWorkbook(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("reading %s: workbook has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rows, nil
}

// columnIndex maps lowercased header names to their positions
func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	return idx
}

func requireColumns(idx map[string]int, names ...string) error {
	for _, name := range names {
		if _, ok := idx[name]; !ok {
			return fmt.Errorf("%w %q", ErrMissingColumn, name)
		}
	}
	return nil
}

// cell returns a trimmed field, failing on short rows
func cell(row []string, col, line int, name string) (string, error) {
	if col >= len(row) {
		return "", fmt.Errorf("line %d: missing %s value", line, name)
	}
	return strings.TrimSpace(row[col]), nil
}

func parseFloat(row []string, col, line int, name string) (float64, error) {
	s, err := cell(row, col, line, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: invalid %s %q", line, name, s)
	}
	return v, nil
}

func parseEnergy(rows [][]string) ([]models.EnergyRecord, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
	}
	idx := columnIndex(rows[0])
	if err := requireColumns(idx, "date", "energy_consumption"); err != nil {
		return nil, err
	}

	records := make([]models.EnergyRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		s, err := cell(row, idx["date"], line, "date")
		if err != nil {
			return nil, err
		}
		date, err := ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		kwh, err := parseFloat(row, idx["energy_consumption"], line, "energy_consumption")
		if err != nil {
			return nil, err
		}
		records = append(records, models.EnergyRecord{ID: i + 1, Date: date, KWh: kwh})
	}
	return records, nil
}

func parseAppliances(rows [][]string) ([]models.ApplianceRecord, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
	}
	idx := columnIndex(rows[0])
	if err := requireColumns(idx, "appliance", "power_consumption"); err != nil {
		return nil, err
	}
	dateCol, hasDate := idx["date"]

	records := make([]models.ApplianceRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		name, err := cell(row, idx["appliance"], line, "appliance")
		if err != nil {
			return nil, err
		}
		power, err := parseFloat(row, idx["power_consumption"], line, "power_consumption")
		if err != nil {
			return nil, err
		}
		rec := models.ApplianceRecord{ID: i + 1, Appliance: name, Power: power}
		if hasDate && dateCol < len(row) && strings.TrimSpace(row[dateCol]) != "" {
			if rec.Date, err = ParseDate(row[dateCol]); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
