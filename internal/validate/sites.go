package validate

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/geovector-labs/aedesmap/internal/geo"
)

// LoadSites reads independent field sites from a CSV with columns
// site, lon, lat, present (1/0) and projects them into targetProj.
func LoadSites(path, targetProj string) ([]Site, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open validation file: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: malformed validation file: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s: no validation sites", path)
	}

	col := map[string]int{}
	for i, name := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"site", "lon", "lat", "present"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, required)
		}
	}

	tr, err := geo.NewTransform(geo.LongLatProj, targetProj)
	if err != nil {
		return nil, err
	}

	sites := make([]Site, 0, len(rows)-1)
	for line, row := range rows[1:] {
		s := Site{SiteID: strings.TrimSpace(row[col["site"]])}
		if s.SiteID == "" {
			return nil, fmt.Errorf("%s line %d: empty site id", path, line+2)
		}
		lon, err := strconv.ParseFloat(row[col["lon"]], 64)
		if err != nil {
			return nil, fmt.Errorf("%s site %s: bad lon: %w", path, s.SiteID, err)
		}
		lat, err := strconv.ParseFloat(row[col["lat"]], 64)
		if err != nil {
			return nil, fmt.Errorf("%s site %s: bad lat: %w", path, s.SiteID, err)
		}
		s.X, s.Y, err = tr.Point(lon, lat)
		if err != nil {
			return nil, fmt.Errorf("%s site %s: %w", path, s.SiteID, err)
		}
		switch strings.TrimSpace(row[col["present"]]) {
		case "1", "true":
			s.Present = true
		case "0", "false":
			s.Present = false
		default:
			return nil, fmt.Errorf("%s site %s: present must be 0 or 1, got %q",
				path, s.SiteID, row[col["present"]])
		}
		sites = append(sites, s)
	}
	return sites, nil
}
