// Package report writes the end-of-day PnL report.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Rajchodisetti/alertbot/internal/observ"
	"github.com/Rajchodisetti/alertbot/internal/pnl"
)

// Result lists what a report run produced.
type Result struct {
	ParquetPath string      `json:"parquet_path"`
	SummaryPath string      `json:"summary_path"`
	Uploaded    []string    `json:"uploaded,omitempty"`
	Summary     pnl.Summary `json:"summary"`
}

type summaryFile struct {
	Date      string                 `json:"date"`
	Overall   pnl.Summary            `json:"overall"`
	ByVersion map[string]pnl.Summary `json:"by_version"`
	Records   int                    `json:"records"`
	Generated time.Time              `json:"generated_at"`
}

// Writer renders reports into dir and optionally uploads them.
type Writer struct {
	dir      string
	uploader Uploader
	now      func() time.Time
}

func NewWriter(dir string, uploader Uploader) *Writer {
	return &Writer{dir: dir, uploader: uploader, now: time.Now}
}

// Write produces pnl_<date>.parquet and summary_<date>.json for day.
// Upload failures are logged; the local files are still reported.
func (w *Writer) Write(ctx context.Context, day time.Time, records []pnl.Record) (Result, error) {
	stamp := day.Format("20060102")
	res := Result{
		ParquetPath: filepath.Join(w.dir, fmt.Sprintf("pnl_%s.parquet", stamp)),
		SummaryPath: filepath.Join(w.dir, fmt.Sprintf("summary_%s.json", stamp)),
		Summary:     pnl.Summarize(records),
	}

	if err := WritePnL(res.ParquetPath, records); err != nil {
		return res, fmt.Errorf("failed to write parquet report: %w", err)
	}

	byVersion := make(map[string][]pnl.Record)
	for _, r := range records {
		byVersion[r.Version] = append(byVersion[r.Version], r)
	}
	sf := summaryFile{
		Date:      day.Format("2006-01-02"),
		Overall:   res.Summary,
		ByVersion: make(map[string]pnl.Summary, len(byVersion)),
		Records:   len(records),
		Generated: w.now().UTC(),
	}
	for v, recs := range byVersion {
		sf.ByVersion[v] = pnl.Summarize(recs)
	}
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return res, err
	}
	if err := os.WriteFile(res.SummaryPath, data, 0644); err != nil {
		return res, fmt.Errorf("failed to write summary: %w", err)
	}

	if w.uploader != nil {
		for _, p := range []string{res.ParquetPath, res.SummaryPath} {
			uri, err := w.uploader.Upload(ctx, p)
			if err != nil {
				observ.Error("report_upload_failed", err, map[string]any{"path": p})
				continue
			}
			res.Uploaded = append(res.Uploaded, uri)
		}
	}

	observ.Log("report_written", map[string]any{
		"records":  len(records),
		"parquet":  res.ParquetPath,
		"summary":  res.SummaryPath,
		"uploaded": len(res.Uploaded),
	})
	return res, nil
}

// Report writes the report and discards the result details.
func (w *Writer) Report(ctx context.Context, day time.Time, records []pnl.Record) error {
	_, err := w.Write(ctx, day, records)
	return err
}
