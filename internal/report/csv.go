// Package report serializes rank records as one CSV batch per run.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/maltedev/amazon-rank-tracker/internal/rank"
)

// Columns is the canonical output schema. Downstream sheets key on this
// exact order; do not reorder.
var Columns = []string{
	"timestamp",
	"keyword",
	"asin",
	"placement",
	"page",
	"position",
	"rank",
	"organic_rank",
	"status",
}

const timestampLayout = "2006-01-02T15:04:05"

type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// WriteRun writes one run's records to a timestamp-stamped file in the
// output directory and returns the file path.
func (w *Writer) WriteRun(records []rank.RankRecord, runTime time.Time) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("amazon_ranks_%s.csv", runTime.Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if err := Encode(f, records); err != nil {
		return "", err
	}
	return path, nil
}

// Encode writes the header and one row per record.
func Encode(w io.Writer, records []rank.RankRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(row(rec)); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// row renders one record. Not-found rows keep their rank fields blank;
// sponsored rows leave organic_rank blank.
func row(rec rank.RankRecord) []string {
	out := []string{
		rec.Timestamp.Format(timestampLayout),
		rec.Keyword,
		rec.ASIN,
		"", "", "", "", "",
		string(rec.Status),
	}
	if rec.Status != rank.StatusFound {
		return out
	}
	out[3] = string(rec.Placement)
	out[4] = strconv.Itoa(rec.Page)
	out[5] = strconv.Itoa(rec.PositionOnPage)
	out[6] = strconv.Itoa(rec.OverallRank)
	if rec.OrganicRank > 0 {
		out[7] = strconv.Itoa(rec.OrganicRank)
	}
	return out
}
