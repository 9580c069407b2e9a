package endpointtest

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() []Result {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)
	return []Result{
		{
			TestName: "Health Check", Method: "GET", Endpoint: "/api/v1/health/",
			StatusCode: 200, ExpectedStatus: 200, Success: true,
			Duration: 12 * time.Millisecond, ResponseSize: 87, Timestamp: ts,
			ResponsePreview: `{"success":true,"data":{"status":"ok"}}`, Kind: KindPassed,
		},
		{
			TestName: "Create Demo", Method: "POST", Endpoint: "/api/v1/demo/create/",
			StatusCode: 500, ExpectedStatus: 201, Success: false,
			Duration: 1500 * time.Millisecond, ResponseSize: 64, Timestamp: ts.Add(time.Second),
			ErrorMessage:    "Expected 201, got 500",
			ResponsePreview: "line one\nline \"two\", with comma",
			Kind:            KindMismatch,
		},
		{
			TestName: "Get Demo", Method: "GET", Endpoint: "/api/v1/demo/read/{demo_id}/",
			ExpectedStatus: 200, Timestamp: ts.Add(2 * time.Second),
			ErrorMessage: missingDemoIDError, Kind: KindMissingDependency,
		},
		{
			TestName: "List Demos", Method: "GET", Endpoint: "/api/v1/demos/",
			ExpectedStatus: 200, Duration: 30 * time.Second, Timestamp: ts.Add(3 * time.Second),
			ErrorMessage: "dial tcp 127.0.0.1:8801: connect: connection refused",
			ResponsePreview: connectionFailed, Kind: KindTransport,
		},
	}
}

func TestCSVRoundTrip(t *testing.T) {
	in := sampleResults()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, in))

	out, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		assert.True(t, in[i].Timestamp.Equal(out[i].Timestamp), "timestamp row %d", i)
		out[i].Timestamp = in[i].Timestamp
		assert.Equal(t, in[i], out[i], "row %d", i)
	}
}

func TestCSVRoundTripCarriageReturns(t *testing.T) {
	r := Result{
		TestName: "Health Check", Method: "GET", Endpoint: "/api/v1/health/",
		StatusCode: 200, ExpectedStatus: 200, Success: true,
		Timestamp:       time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		ResponsePreview: preview([]byte("{\"k\":\"v\"}\r\n{\"z\":1}")),
	}
	r.appendError("a\r\nb")
	r.appendError("c\rd")
	assert.Equal(t, "a\nb; c\nd", r.ErrorMessage)
	assert.Equal(t, "{\"k\":\"v\"}\n{\"z\":1}", r.ResponsePreview)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []Result{r}))
	out, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, r.ErrorMessage, out[0].ErrorMessage)
	assert.Equal(t, r.ResponsePreview, out[0].ResponsePreview)

	// Raw CR in a hand-built result is written as LF.
	raw := r
	raw.ErrorMessage = "x\r\ny"
	buf.Reset()
	require.NoError(t, WriteCSV(&buf, []Result{raw}))
	assert.NotContains(t, buf.String(), "\r")
}

func TestWriteCSVFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResults()[:2]))
	lines := strings.SplitN(buf.String(), "\n", 3)

	assert.Equal(t, strings.Join(Columns, ","), lines[0])
	assert.Equal(t,
		`Health Check,GET,/api/v1/health/,200,200,true,0.012,87,2026-03-14T09:26:53.589793238Z,,"{""success"":true,""data"":{""status"":""ok""}}"`,
		lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "Create Demo,POST,/api/v1/demo/create/,500,201,false,1.500,64,"))
}

func TestWriteReportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, WriteReportFile(path, sampleResults()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	out, err := ReadCSV(f)
	require.NoError(t, err)
	assert.Len(t, out, 4)
}

func TestWriteReportFileBadPath(t *testing.T) {
	err := WriteReportFile(filepath.Join(t.TempDir(), "missing", "report.csv"), sampleResults())
	assert.Error(t, err)
}

func TestReadCSVRejectsWrongHeader(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("name,status\nx,200\n"))
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleResults())
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Passed)
	assert.Equal(t, 3, s.Failed)
	assert.InDelta(t, 25.0, s.PassRate, 0.001)
	assert.Equal(t, 1, s.ByKind[KindMissingDependency])
	assert.Equal(t, 1, s.ByKind[KindTransport])
	assert.False(t, s.AllPassed())

	assert.False(t, Summarize(nil).AllPassed())
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, Summarize(sampleResults()))
	out := buf.String()
	assert.Contains(t, out, "Total Tests")
	assert.Contains(t, out, "25.0%")
	assert.Contains(t, out, "Failures: missing_dependency")

	buf.Reset()
	PrintResults(&buf, sampleResults())
	assert.Contains(t, buf.String(), "Create Demo")
}

func TestPreview(t *testing.T) {
	short := `{"ok":true}`
	assert.Equal(t, short, preview([]byte(short)))

	long := strings.Repeat("é", 250)
	got := preview([]byte(long))
	assert.Equal(t, strings.Repeat("é", 200)+"...", got)
}

func TestClassify(t *testing.T) {
	for _, r := range sampleResults() {
		assert.Equal(t, r.Kind, classify(r), r.TestName)
	}
}

func TestExtract(t *testing.T) {
	body := []byte(`{"data":{"demo_id":"abc","items":[{"name":"first"}],"n":3}}`)

	id, err := extractString(body, "data.demo_id")
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	name, err := extractString(body, "data.items[0].name")
	require.NoError(t, err)
	assert.Equal(t, "first", name)

	_, err = extractString(body, "data.n")
	assert.Error(t, err)
	_, err = extract(body, "data.items[3]")
	assert.Error(t, err)
	_, err = extract(body, "data.missing")
	assert.Error(t, err)
	_, err = extract([]byte("not json"), "data")
	assert.Error(t, err)
}
