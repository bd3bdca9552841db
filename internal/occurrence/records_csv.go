package occurrence

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

var recordsHeader = []string{"site", "lon", "lat", "x", "y", "cumulative", "presence", "fold"}

// WriteRecordsCSV persists labeled, projected, fold-assigned records so
// downstream stages can reload them without re-deriving anything.
func WriteRecordsCSV(path string, records []*Record) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".records-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(recordsHeader); err != nil {
		tmp.Close()
		return err
	}
	for _, r := range records {
		presence := "0"
		if r.Presence {
			presence = "1"
		}
		row := []string{
			r.SiteID,
			strconv.FormatFloat(r.Lon, 'g', -1, 64),
			strconv.FormatFloat(r.Lat, 'g', -1, 64),
			strconv.FormatFloat(r.X, 'g', -1, 64),
			strconv.FormatFloat(r.Y, 'g', -1, 64),
			strconv.FormatFloat(r.Cumulative, 'g', -1, 64),
			presence,
			strconv.Itoa(r.Fold),
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadRecordsCSV loads records written by WriteRecordsCSV.
func ReadRecordsCSV(path string) ([]*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open records file: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: malformed records file: %w", path, err)
	}
	if len(rows) == 0 || len(rows[0]) != len(recordsHeader) {
		return nil, fmt.Errorf("%s: not a records file", path)
	}

	records := make([]*Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		r := &Record{SiteID: row[0]}
		fields := []struct {
			idx  int
			dest *float64
		}{
			{1, &r.Lon}, {2, &r.Lat}, {3, &r.X}, {4, &r.Y}, {5, &r.Cumulative},
		}
		for _, fd := range fields {
			v, err := strconv.ParseFloat(row[fd.idx], 64)
			if err != nil {
				return nil, fmt.Errorf("%s: site %s: bad %s: %w", path, r.SiteID, recordsHeader[fd.idx], err)
			}
			*fd.dest = v
		}
		r.Presence = row[6] == "1"
		fold, err := strconv.Atoi(row[7])
		if err != nil {
			return nil, fmt.Errorf("%s: site %s: bad fold: %w", path, r.SiteID, err)
		}
		r.Fold = fold
		records = append(records, r)
	}
	return records, nil
}
