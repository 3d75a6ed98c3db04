package simdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"trader/trajectory"
)

var recordHeader = []string{"step", "action", "reward", "final_reward", "q_table", "observation"}

var batchHeader = []string{
	"batch", "start_time", "duration", "jobs", "succeeded", "failed", "timed_out", "records",
	"mean_final_reward", "episodes", "expansions", "terminal_backups", "aborted",
}

// Writer persists simulated records as CSV files under one data directory.
type Writer struct {
	baseDir string
	now     func() time.Time
}

func NewWriter(baseDir string) (*Writer, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &Writer{baseDir: baseDir, now: time.Now}, nil
}

func (w *Writer) Dir() string {
	return w.baseDir
}

// WriteRecords stores one batch of records in <dir>/<model>.<unix-ts>.csv and returns the
// path written. Batches finishing within the same second get a numeric suffix.
func (w *Writer) WriteRecords(model string, records []trajectory.Record) (string, error) {
	f, path, err := w.create(model, "csv")
	if err != nil {
		return "", err
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(recordHeader); err != nil {
		return "", fmt.Errorf("failed to write records header: %w", err)
	}
	for _, r := range records {
		record := []string{
			strconv.Itoa(r.Step),
			strconv.Itoa(r.Action),
			formatFloat(r.Reward),
			formatFloat(r.FinalReward),
			joinFloats(r.QTable),
			joinFloats(r.Observation),
		}
		if err := writer.Write(record); err != nil {
			return "", fmt.Errorf("failed to write record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush records: %w", err)
	}
	return path, nil
}

// WriteBatchMetrics stores per-batch statistics of a run in <dir>/<model>.batches.csv.
func (w *Writer) WriteBatchMetrics(model string, metrics []BatchMetric) (string, error) {
	path := filepath.Join(w.baseDir, model+".batches.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create batch metrics file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(batchHeader); err != nil {
		return "", fmt.Errorf("failed to write batch metrics header: %w", err)
	}
	for _, m := range metrics {
		record := []string{
			strconv.Itoa(m.Batch),
			m.StartTime.UTC().Format(time.RFC3339),
			m.Duration.String(),
			strconv.FormatInt(m.Jobs, 10),
			strconv.FormatInt(m.Succeeded, 10),
			strconv.FormatInt(m.Failed, 10),
			strconv.FormatInt(m.TimedOut, 10),
			strconv.FormatInt(m.Records, 10),
			formatFloat(m.MeanFinalReward),
			strconv.FormatInt(m.Search.Episodes, 10),
			strconv.FormatInt(m.Search.Expansions, 10),
			strconv.FormatInt(m.Search.TerminalBackups, 10),
			strconv.FormatInt(m.Search.Aborted, 10),
		}
		if err := writer.Write(record); err != nil {
			return "", fmt.Errorf("failed to write batch metric: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush batch metrics: %w", err)
	}
	return path, nil
}

func (w *Writer) create(model, ext string) (*os.File, string, error) {
	ts := w.now().Unix()
	for n := 0; ; n++ {
		name := fmt.Sprintf("%s.%d.%s", model, ts, ext)
		if n > 0 {
			name = fmt.Sprintf("%s.%d.%d.%s", model, ts, n, ext)
		}
		path := filepath.Join(w.baseDir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to create records file: %w", err)
		}
		return f, path, nil
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// joinFloats packs a vector into one CSV cell, separated by semicolons.
func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatFloat(v)
	}
	return strings.Join(parts, ";")
}

// ReadRecords parses a file written by WriteRecords.
func ReadRecords(path string) ([]trajectory.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open records file: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: missing header", path)
	}

	records := make([]trajectory.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		r, err := parseRecord(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func parseRecord(row []string) (trajectory.Record, error) {
	var r trajectory.Record
	if len(row) != len(recordHeader) {
		return r, fmt.Errorf("want %d columns, got %d", len(recordHeader), len(row))
	}
	var err error
	if r.Step, err = strconv.Atoi(row[0]); err != nil {
		return r, err
	}
	if r.Action, err = strconv.Atoi(row[1]); err != nil {
		return r, err
	}
	if r.Reward, err = strconv.ParseFloat(row[2], 64); err != nil {
		return r, err
	}
	if r.FinalReward, err = strconv.ParseFloat(row[3], 64); err != nil {
		return r, err
	}
	if r.QTable, err = splitFloats(row[4]); err != nil {
		return r, err
	}
	r.Observation, err = splitFloats(row[5])
	return r, err
}

func splitFloats(cell string) ([]float64, error) {
	if cell == "" {
		return nil, nil
	}
	parts := strings.Split(cell, ";")
	values := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}
