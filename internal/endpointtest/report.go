package endpointtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Columns is the fixed report column order.
var Columns = []string{
	"test_name",
	"method",
	"endpoint",
	"status_code",
	"expected_status",
	"success",
	"duration_seconds",
	"response_size_bytes",
	"timestamp",
	"error_message",
	"response_preview",
}

// WriteCSV writes a header row and one row per result.
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing report header: %w", err)
	}
	for _, r := range results {
		if err := cw.Write(row(r)); err != nil {
			return fmt.Errorf("writing report row %q: %w", r.TestName, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(r Result) []string {
	return []string{
		r.TestName,
		r.Method,
		r.Endpoint,
		strconv.Itoa(r.StatusCode),
		strconv.Itoa(r.ExpectedStatus),
		strconv.FormatBool(r.Success),
		fmt.Sprintf("%.3f", r.Duration.Seconds()),
		strconv.Itoa(r.ResponseSize),
		r.Timestamp.Format(time.RFC3339Nano),
		normalizeNewlines(r.ErrorMessage),
		normalizeNewlines(r.ResponsePreview),
	}
}

// WriteReportFile writes the report to path, replacing any existing file.
func WriteReportFile(path string, results []Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report %s: %w", path, err)
	}
	if err := WriteCSV(f, results); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing report %s: %w", path, err)
	}
	return nil
}

// ReadCSV parses a report written by WriteCSV.
func ReadCSV(r io.Reader) ([]Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Columns)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading report header: %w", err)
	}
	if !slices.Equal(header, Columns) {
		return nil, fmt.Errorf("unexpected report header %v", header)
	}

	var results []Result
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading report: %w", err)
		}
		res, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("report line %d: %w", line, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func parseRow(rec []string) (Result, error) {
	res := Result{
		TestName:        rec[0],
		Method:          rec[1],
		Endpoint:        rec[2],
		ErrorMessage:    rec[9],
		ResponsePreview: rec[10],
	}
	var err error
	if res.StatusCode, err = strconv.Atoi(rec[3]); err != nil {
		return Result{}, fmt.Errorf("status_code: %w", err)
	}
	if res.ExpectedStatus, err = strconv.Atoi(rec[4]); err != nil {
		return Result{}, fmt.Errorf("expected_status: %w", err)
	}
	if res.Success, err = strconv.ParseBool(rec[5]); err != nil {
		return Result{}, fmt.Errorf("success: %w", err)
	}
	secs, err := strconv.ParseFloat(rec[6], 64)
	if err != nil {
		return Result{}, fmt.Errorf("duration_seconds: %w", err)
	}
	res.Duration = time.Duration(math.Round(secs*1000)) * time.Millisecond
	if res.ResponseSize, err = strconv.Atoi(rec[7]); err != nil {
		return Result{}, fmt.Errorf("response_size_bytes: %w", err)
	}
	if res.Timestamp, err = time.Parse(time.RFC3339Nano, rec[8]); err != nil {
		return Result{}, fmt.Errorf("timestamp: %w", err)
	}
	res.Kind = classify(res)
	return res, nil
}

// Summary aggregates a run.
type Summary struct {
	Total       int
	Passed      int
	Failed      int
	PassRate    float64 // percent
	AvgDuration time.Duration
	ByKind      map[Kind]int
}

// Summarize counts results by outcome.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results), ByKind: map[Kind]int{}}
	var total time.Duration
	for _, r := range results {
		if r.Success {
			s.Passed++
		} else {
			s.Failed++
		}
		kind := r.Kind
		if kind == "" {
			kind = classify(r)
		}
		s.ByKind[kind]++
		total += r.Duration
	}
	if s.Total > 0 {
		s.PassRate = float64(s.Passed) / float64(s.Total) * 100
		s.AvgDuration = total / time.Duration(s.Total)
	}
	return s
}

// AllPassed reports whether every step passed.
func (s Summary) AllPassed() bool {
	return s.Total > 0 && s.Failed == 0
}

// PrintResults renders one row per step.
func PrintResults(w io.Writer, results []Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Test", "Method", "Endpoint", "Status", "Expected", "Result", "Duration"})
	for i, r := range results {
		outcome := text.FgGreen.Sprint("PASS")
		if !r.Success {
			outcome = text.FgRed.Sprint("FAIL")
		}
		t.AppendRow(table.Row{
			i + 1, r.TestName, r.Method, r.Endpoint, r.StatusCode, r.ExpectedStatus, outcome,
			fmt.Sprintf("%.3fs", r.Duration.Seconds()),
		})
	}
	t.Render()
}

// PrintSummary renders the totals table.
func PrintSummary(w io.Writer, s Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Total Tests", s.Total},
		{"Passed", s.Passed},
		{"Failed", s.Failed},
		{"Pass Rate", fmt.Sprintf("%.1f%%", s.PassRate)},
		{"Average Duration", fmt.Sprintf("%.3fs", s.AvgDuration.Seconds())},
	})

	kinds := make([]string, 0, len(s.ByKind))
	for k := range s.ByKind {
		if k != KindPassed {
			kinds = append(kinds, string(k))
		}
	}
	slices.Sort(kinds)
	for _, k := range kinds {
		t.AppendRow(table.Row{"Failures: " + k, s.ByKind[Kind(k)]})
	}
	t.Render()
}
