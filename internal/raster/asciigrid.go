package raster

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadASCIIGrid reads an ESRI ASCII grid (.asc) file.
func ReadASCIIGrid(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ascii grid: %w", err)
	}
	defer f.Close()

	g, err := DecodeASCIIGrid(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// DecodeASCIIGrid parses an ESRI ASCII grid from r. Header keys are
// case-insensitive. Only corner-anchored grids are supported; grids written
// with xllcenter/yllcenter are rejected rather than silently shifted.
func DecodeASCIIGrid(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	sc.Split(bufio.ScanWords)

	next := func() (string, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		return sc.Text(), nil
	}

	g := &Grid{Nodata: DefaultNodata}
	headerSet := map[string]bool{}

	// Header: key/value pairs until the first purely numeric token.
	var firstValue string
	for {
		tok, err := next()
		if err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}
		if _, convErr := strconv.ParseFloat(tok, 64); convErr == nil && len(headerSet) >= 5 {
			firstValue = tok
			break
		}

		key := strings.ToLower(tok)
		val, err := next()
		if err != nil {
			return nil, fmt.Errorf("reading header value for %q: %w", key, err)
		}

		switch key {
		case "ncols":
			g.Ncols, err = strconv.Atoi(val)
		case "nrows":
			g.Nrows, err = strconv.Atoi(val)
		case "xllcorner":
			g.Xll, err = strconv.ParseFloat(val, 64)
		case "yllcorner":
			g.Yll, err = strconv.ParseFloat(val, 64)
		case "cellsize":
			g.Cellsize, err = strconv.ParseFloat(val, 64)
		case "nodata_value":
			g.Nodata, err = strconv.ParseFloat(val, 64)
		case "xllcenter", "yllcenter":
			return nil, fmt.Errorf("center-anchored grids are not supported (key %q)", key)
		default:
			return nil, fmt.Errorf("unknown header key %q", key)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing header %q=%q: %w", key, val, err)
		}
		headerSet[key] = true
	}

	for _, req := range []string{"ncols", "nrows", "xllcorner", "yllcorner", "cellsize"} {
		if !headerSet[req] {
			return nil, fmt.Errorf("missing header key %q", req)
		}
	}
	if g.Ncols <= 0 || g.Nrows <= 0 {
		return nil, fmt.Errorf("degenerate grid %dx%d", g.Ncols, g.Nrows)
	}
	if g.Cellsize <= 0 {
		return nil, fmt.Errorf("non-positive cellsize %g", g.Cellsize)
	}

	g.Data = make([]float64, g.Ncols*g.Nrows)
	v, err := strconv.ParseFloat(firstValue, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing cell 0: %w", err)
	}
	g.Data[0] = v
	for i := 1; i < len(g.Data); i++ {
		tok, err := next()
		if err != nil {
			return nil, fmt.Errorf("reading cell %d of %d: %w", i, len(g.Data), err)
		}
		if g.Data[i], err = strconv.ParseFloat(tok, 64); err != nil {
			return nil, fmt.Errorf("parsing cell %d: %w", i, err)
		}
	}

	return g, nil
}

// WriteASCIIGrid writes the grid as an ESRI ASCII grid using an atomic
// write-then-rename so a crash never leaves a truncated artifact behind.
func WriteASCIIGrid(path string, g *Grid) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := EncodeASCIIGrid(w, g); err != nil {
		tmp.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename grid into place: %w", err)
	}
	return nil
}

// EncodeASCIIGrid writes the grid to w. Values are formatted with the
// shortest representation that round-trips through ParseFloat.
func EncodeASCIIGrid(w io.Writer, g *Grid) error {
	if g.Ncols <= 0 || g.Nrows <= 0 || len(g.Data) != g.Ncols*g.Nrows {
		return fmt.Errorf("inconsistent grid: %dx%d with %d cells", g.Ncols, g.Nrows, len(g.Data))
	}

	fmt.Fprintf(w, "ncols %d\n", g.Ncols)
	fmt.Fprintf(w, "nrows %d\n", g.Nrows)
	fmt.Fprintf(w, "xllcorner %s\n", formatFloat(g.Xll))
	fmt.Fprintf(w, "yllcorner %s\n", formatFloat(g.Yll))
	fmt.Fprintf(w, "cellsize %s\n", formatFloat(g.Cellsize))
	fmt.Fprintf(w, "NODATA_value %s\n", formatFloat(g.Nodata))

	buf := make([]byte, 0, 32)
	for row := 0; row < g.Nrows; row++ {
		for col := 0; col < g.Ncols; col++ {
			if col > 0 {
				if _, err := io.WriteString(w, " "); err != nil {
					return err
				}
			}
			buf = strconv.AppendFloat(buf[:0], g.At(col, row), 'g', -1, 64)
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
