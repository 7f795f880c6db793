// Package targets loads the tracking list: which ASINs to look for
// under which search keywords.
package targets

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/maltedev/amazon-rank-tracker/internal/rank"
)

var (
	ErrMissingHeader  = errors.New("header row not found in input")
	ErrNoValidTargets = errors.New("no valid targets in input")
)

// Expected header names, matched case-insensitively.
const (
	colASIN    = "ASIN"
	colKeyword = "SEARCH TERM"
	colActive  = "ACTIVE"
)

var activeValues = map[string]struct{}{
	"yes": {}, "y": {}, "true": {}, "1": {},
}

// Load reads the target CSV at path. Rows marked inactive or missing an
// ASIN or keyword are skipped. An input with no usable rows is an
// error: there is nothing to scan.
func Load(path string) ([]rank.Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	targets, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return targets, nil
}

// Parse reads targets from CSV data with an ASIN / SEARCH TERM / ACTIVE
// header. Keywords keep their first-seen order; ASINs are normalized
// and grouped per keyword.
func Parse(r io.Reader) ([]rank.Target, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		// Spreadsheet exports often carry a UTF-8 BOM.
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	asinCol, keywordCol, activeCol := -1, -1, -1
	for i, name := range header {
		switch strings.ToUpper(strings.TrimSpace(name)) {
		case colASIN:
			asinCol = i
		case colKeyword:
			keywordCol = i
		case colActive:
			activeCol = i
		}
	}
	if asinCol < 0 || keywordCol < 0 {
		return nil, ErrMissingHeader
	}

	grouped := make(map[string]rank.Target)
	var order []string

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		asin := rank.NormalizeASIN(field(row, asinCol))
		keyword := strings.TrimSpace(field(row, keywordCol))

		active := "yes"
		if activeCol >= 0 {
			if v := strings.ToLower(strings.TrimSpace(field(row, activeCol))); v != "" {
				active = v
			}
		}
		if _, ok := activeValues[active]; !ok {
			continue
		}
		if asin == "" || keyword == "" {
			continue
		}

		target, ok := grouped[keyword]
		if !ok {
			target = rank.Target{Keyword: keyword, ASINs: make(map[string]struct{})}
			order = append(order, keyword)
		}
		target.ASINs[asin] = struct{}{}
		grouped[keyword] = target
	}

	if len(order) == 0 {
		return nil, ErrNoValidTargets
	}

	targets := make([]rank.Target, 0, len(order))
	for _, keyword := range order {
		targets = append(targets, grouped[keyword])
	}
	return targets, nil
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
