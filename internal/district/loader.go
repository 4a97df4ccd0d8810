package district

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Dataset holds the loaded precomputed data the dashboard serves.
// GeoJSON is kept as raw bytes and passed through untouched; the map layer
// owns its schema.
type Dataset struct {
	Records    []Record
	ByDistrict map[string]Record
	GeoJSON    json.RawMessage
}

const (
	policySummaryFile = "policy_summary.csv"
	geoJSONFile       = "districts.geojson"
)

// Load reads the dataset files from dir concurrently. The policy summary
// CSV is required; the GeoJSON file is optional and its absence is not an
// error (the API then serves an empty feature collection).
func Load(ctx context.Context, dir string) (*Dataset, error) {
	ds := &Dataset{}

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		records, err := loadCSV(filepath.Join(dir, policySummaryFile))
		if err != nil {
			return fmt.Errorf("loading policy summary: %w", err)
		}
		ds.Records = records
		return nil
	})

	g.Go(func() error {
		data, err := os.ReadFile(filepath.Join(dir, geoJSONFile))
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("loading geojson: %w", err)
		}
		if !json.Valid(data) {
			return fmt.Errorf("geojson %s is not valid JSON", geoJSONFile)
		}
		ds.GeoJSON = data
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	ds.ByDistrict = make(map[string]Record, len(ds.Records))
	for _, r := range ds.Records {
		if name := r.Name(); name != "" {
			ds.ByDistrict[name] = r
		}
	}

	return ds, nil
}

// Get returns the row for the named district.
func (d *Dataset) Get(name string) (Record, bool) {
	r, ok := d.ByDistrict[name]
	return r, ok
}

// Names returns all district names present in the dataset, in file order.
func (d *Dataset) Names() []string {
	names := make([]string, 0, len(d.Records))
	for _, r := range d.Records {
		if name := r.Name(); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// loadCSV parses a header-keyed CSV into Records. Numeric-looking cells
// become float64 so downstream access matches the dashboard's dynamic
// typing; empty cells are omitted from the row.
func loadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("%s is empty", filepath.Base(path))
	}

	header := rows[0]
	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(Record, len(header))
		empty := true
		for i, cell := range row {
			if i >= len(header) {
				break
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			empty = false
			if f, err := strconv.ParseFloat(cell, 64); err == nil {
				rec[header[i]] = f
			} else {
				rec[header[i]] = cell
			}
		}
		if !empty {
			records = append(records, rec)
		}
	}
	return records, nil
}
