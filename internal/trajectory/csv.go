package trajectory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMalformedCSV is returned for point files that cannot be decoded.
var ErrMalformedCSV = errors.New("malformed point csv")

// ReadCSV decodes a point table with a header row naming "x" and "y"
// columns. Column order is free and other columns are ignored. Rows with
// unparsable or non-finite values are rejected.
func ReadCSV(r io.Reader) (Trajectory, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedCSV)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}

	xCol, yCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "x":
			xCol = i
		case "y":
			yCol = i
		}
	}
	if xCol < 0 || yCol < 0 {
		return nil, fmt.Errorf("%w: header %q lacks x,y columns", ErrMalformedCSV, strings.Join(header, ","))
	}

	var out Trajectory
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedCSV, line, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if xCol >= len(rec) || yCol >= len(rec) {
			return nil, fmt.Errorf("%w: line %d: expected at least %d fields, got %d",
				ErrMalformedCSV, line, max(xCol, yCol)+1, len(rec))
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(rec[xCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: invalid x %q", ErrMalformedCSV, line, rec[xCol])
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(rec[yCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: invalid y %q", ErrMalformedCSV, line, rec[yCol])
		}
		p := Point{X: x, Y: y}
		if !IsFinite(p) {
			return nil, fmt.Errorf("line %d: %w", line, ErrNonFinite)
		}
		out = append(out, p)
	}
	return out, nil
}

// WriteCSV encodes t as an "x,y" table in traversal order.
func WriteCSV(w io.Writer, t Trajectory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"x", "y"}); err != nil {
		return err
	}
	for _, p := range t {
		rec := []string{
			strconv.FormatFloat(p.X, 'g', -1, 64),
			strconv.FormatFloat(p.Y, 'g', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
