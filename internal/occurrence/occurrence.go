// Package occurrence prepares field oviposition survey records for model
// calibration: cumulative counts over a configured window of weeks,
// presence/absence labels, projected coordinates and a deterministic
// k-fold calibration/evaluation split.
package occurrence

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/geom"

	"github.com/geovector-labs/aedesmap/internal/geo"
)

// ErrNoPresence reports that a record set contains zero presence sites.
// Calibration cannot proceed without presences, so this is fatal at the
// preparation stage.
var ErrNoPresence = errors.New("no presence records")

// Record is one sampling site with its per-week counts and derived fields.
type Record struct {
	SiteID string
	Lon    float64
	Lat    float64

	// X, Y are the coordinates projected into the predictor raster system.
	X float64
	Y float64

	// Counts maps week number to observed count. Missing weeks are absent
	// from the map.
	Counts map[int]float64

	// Derived by Label.
	Cumulative float64
	Presence   bool

	// Fold index assigned by Split, in [0,k).
	Fold int
}

// Point returns the projected location of the record.
func (r *Record) Point() geom.Point {
	return geom.Point{X: r.X, Y: r.Y}
}

// LoadCSV reads sampling records from a CSV file with columns
// site,lon,lat plus any number of week_N count columns. Empty count cells
// are treated as missing, not zero.
func LoadCSV(path string) ([]*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open occurrence file: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read header: %w", path, err)
	}

	col := map[string]int{}
	weekCols := map[int]int{} // week number -> column index
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if wk, ok := strings.CutPrefix(name, "week_"); ok {
			n, err := strconv.Atoi(wk)
			if err != nil {
				return nil, fmt.Errorf("%s: bad week column %q", path, name)
			}
			weekCols[n] = i
			continue
		}
		col[name] = i
	}
	for _, req := range []string{"site", "lon", "lat"} {
		if _, ok := col[req]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, req)
		}
	}
	if len(weekCols) == 0 {
		return nil, fmt.Errorf("%s: no week_N count columns", path)
	}

	var records []*Record
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		line++

		r := &Record{
			SiteID: strings.TrimSpace(row[col["site"]]),
			Counts: make(map[int]float64, len(weekCols)),
		}
		if r.SiteID == "" {
			return nil, fmt.Errorf("%s line %d: empty site id", path, line)
		}
		if r.Lon, err = strconv.ParseFloat(row[col["lon"]], 64); err != nil {
			return nil, fmt.Errorf("%s line %d (site %s): bad lon: %w", path, line, r.SiteID, err)
		}
		if r.Lat, err = strconv.ParseFloat(row[col["lat"]], 64); err != nil {
			return nil, fmt.Errorf("%s line %d (site %s): bad lat: %w", path, line, r.SiteID, err)
		}
		if math.Abs(r.Lon) > 180 || math.Abs(r.Lat) > 90 {
			return nil, fmt.Errorf("%s line %d (site %s): coordinates (%g,%g) are not geographic",
				path, line, r.SiteID, r.Lon, r.Lat)
		}

		for wk, i := range weekCols {
			cell := strings.TrimSpace(row[i])
			if cell == "" || strings.EqualFold(cell, "na") {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d (site %s): bad count for week %d: %w",
					path, line, r.SiteID, wk, err)
			}
			r.Counts[wk] = v
		}

		records = append(records, r)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%s: no sampling records", path)
	}
	return records, nil
}

// Label sums counts over the window weeks and labels each record present
// iff the sum is positive. Records with no observed count in any window
// week are excluded from the result rather than treated as absences; this
// is a deliberate policy, since an unobserved trap says nothing about the
// site.
func Label(records []*Record, windowWeeks []int) ([]*Record, error) {
	if len(windowWeeks) == 0 {
		return nil, fmt.Errorf("empty observation window")
	}

	var out []*Record
	presences := 0
	for _, r := range records {
		observed := false
		sum := 0.0
		for _, wk := range windowWeeks {
			if v, ok := r.Counts[wk]; ok {
				observed = true
				sum += v
			}
		}
		if !observed {
			continue
		}
		r.Cumulative = sum
		r.Presence = sum > 0
		if r.Presence {
			presences++
		}
		out = append(out, r)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("all %d records have missing counts for window %v", len(records), windowWeeks)
	}
	if presences == 0 {
		return nil, fmt.Errorf("%w: window %v over %d observed sites", ErrNoPresence, windowWeeks, len(out))
	}
	return out, nil
}

// Project fills X,Y by reprojecting lon/lat into the raster system.
func Project(records []*Record, targetProj string) error {
	tr, err := geo.NewTransform(geo.LongLatProj, targetProj)
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.X, r.Y, err = tr.Point(r.Lon, r.Lat); err != nil {
			return fmt.Errorf("site %s: %w", r.SiteID, err)
		}
	}
	return nil
}

// Split assigns each record a fold index in [0,k) using the given seed.
// The assignment is deterministic for a fixed seed and record set: records
// are sorted by site id, shuffled with a seeded source and dealt round-robin
// so fold sizes differ by at most one.
func Split(records []*Record, k int, seed int64) error {
	if k < 2 {
		return fmt.Errorf("k-fold split requires k >= 2, got %d", k)
	}
	if k > len(records) {
		return fmt.Errorf("cannot split %d records into %d folds", len(records), k)
	}

	shuffled := make([]*Record, len(records))
	copy(shuffled, records)
	sort.Slice(shuffled, func(i, j int) bool { return shuffled[i].SiteID < shuffled[j].SiteID })

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	for i, r := range shuffled {
		r.Fold = i % k
	}
	return nil
}

// TrainEval partitions labeled records into the training set and the
// held-out evaluation fold.
func TrainEval(records []*Record, evalFold int) (train, eval []*Record) {
	for _, r := range records {
		if r.Fold == evalFold {
			eval = append(eval, r)
		} else {
			train = append(train, r)
		}
	}
	return train, eval
}

// PresencePoints returns the projected locations of all presence records.
func PresencePoints(records []*Record) []geom.Point {
	var pts []geom.Point
	for _, r := range records {
		if r.Presence {
			pts = append(pts, r.Point())
		}
	}
	return pts
}

// WriteSamplesCSV writes presence records in the species,longitude,latitude
// layout the niche-modeling engine consumes. Coordinates are the projected
// ones so they match the predictor rasters.
func WriteSamplesCSV(path, species string, records []*Record) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".samples*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	w := csv.NewWriter(f)
	if err := w.Write([]string{"species", "longitude", "latitude"}); err != nil {
		return err
	}
	n := 0
	for _, r := range records {
		if !r.Presence {
			continue
		}
		if err := w.Write([]string{
			species,
			strconv.FormatFloat(r.X, 'f', -1, 64),
			strconv.FormatFloat(r.Y, 'f', -1, 64),
		}); err != nil {
			return err
		}
		n++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if n == 0 {
		return ErrNoPresence
	}
	return os.Rename(f.Name(), path)
}
