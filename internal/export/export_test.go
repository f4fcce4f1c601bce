package export

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/me/gosweep/pkg/model"
)

func exportResults() *model.SimulationResults {
	return &model.SimulationResults{
		Success: true,
		Data: map[string][]float64{
			model.TimeColumn: {0, 0.5, 1},
			"prey":           {10.25, 12, 15.5},
			"predator":       {2, 3.75, 5},
		},
		Columns: []string{model.TimeColumn, "prey", "predator"},
		Index:   []float64{0, 0.5, 1},
	}
}

func TestToCSV(t *testing.T) {
	out, err := ToCSV(exportResults(), CSVOptions{})
	if err != nil {
		t.Fatalf("ToCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want header + 3 rows:\n%s", len(lines), out)
	}
	if lines[0] != "Time,prey,predator" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[2] != "0.5,12,3.75" {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestToCSV_CustomDelimiter(t *testing.T) {
	out, err := ToCSV(exportResults(), CSVOptions{Delimiter: ';'})
	if err != nil {
		t.Fatalf("ToCSV: %v", err)
	}
	if !strings.HasPrefix(out, "Time;prey;predator") {
		t.Errorf("header = %q", strings.SplitN(out, "\n", 2)[0])
	}
}

func TestCSV_RoundTrip(t *testing.T) {
	original := exportResults()
	original.Data["noise"] = []float64{1.2345678901234567, -0.000001, 1e21}
	original.Columns = append(original.Columns, "noise")

	out, err := ToCSV(original, CSVOptions{})
	if err != nil {
		t.Fatalf("ToCSV: %v", err)
	}
	parsed, err := ParseCSV(out, CSVOptions{})
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}

	for name, series := range original.Data {
		got, ok := parsed.Data[name]
		if !ok {
			t.Fatalf("series %q lost in round trip", name)
		}
		if len(got) != len(series) {
			t.Fatalf("series %q: %d samples, want %d", name, len(got), len(series))
		}
		for i := range series {
			if got[i] != series[i] {
				t.Errorf("%s[%d] = %v, want %v", name, i, got[i], series[i])
			}
		}
	}
	if len(parsed.Index) != 3 || parsed.Index[1] != 0.5 {
		t.Errorf("Index = %v", parsed.Index)
	}
}

func TestParseCSV_Malformed(t *testing.T) {
	if _, err := ParseCSV("", CSVOptions{}); err == nil {
		t.Error("empty input should fail")
	}
	if _, err := ParseCSV("Time,x\n1,notanumber", CSVOptions{}); err == nil {
		t.Error("non-numeric field should fail")
	}
}

func TestToJSON_Envelope(t *testing.T) {
	out, err := ToJSON(exportResults(), false)
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	var envelope JSONEnvelope
	if err := json.Unmarshal(out, &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Metadata.Samples != 3 {
		t.Errorf("Samples = %d, want 3", envelope.Metadata.Samples)
	}
	if envelope.Result == nil || math.Abs(envelope.Result.Data["prey"][0]-10.25) > 1e-12 {
		t.Errorf("result data lost: %+v", envelope.Result)
	}

	pretty, err := ToJSON(exportResults(), true)
	if err != nil {
		t.Fatalf("ToJSON pretty: %v", err)
	}
	if !strings.Contains(string(pretty), "\n  ") {
		t.Error("pretty output is not indented")
	}
}

func TestToHTML_Truncation(t *testing.T) {
	out, err := ToHTML(exportResults(), 2)
	if err != nil {
		t.Fatalf("ToHTML: %v", err)
	}
	if got := strings.Count(out, "<tr>") - 1; got != 2 {
		t.Errorf("body rows = %d, want 2", got)
	}
	if !strings.Contains(out, "Showing 2 of 3 rows") {
		t.Errorf("no truncation notice:\n%s", out)
	}

	full, err := ToHTML(exportResults(), 0)
	if err != nil {
		t.Fatalf("ToHTML: %v", err)
	}
	if strings.Contains(full, "Showing") {
		t.Error("uncapped output must not report truncation")
	}
}

func TestCSVChunker(t *testing.T) {
	chunker, err := NewCSVChunker(exportResults(), CSVOptions{}, 2)
	if err != nil {
		t.Fatalf("NewCSVChunker: %v", err)
	}

	var chunks []string
	for {
		chunk, ok, err := chunker.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		chunks = append(chunks, chunk)
	}

	// 3 rows at 2 per chunk: header+2, then 1.
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}

	whole, err := ToCSV(exportResults(), CSVOptions{})
	if err != nil {
		t.Fatalf("ToCSV: %v", err)
	}
	if strings.Join(chunks, "") != whole {
		t.Errorf("concatenated chunks differ from one-shot CSV:\n%q\nvs\n%q", strings.Join(chunks, ""), whole)
	}
}

func TestExport_FailedResult(t *testing.T) {
	failed := model.FailedResult("upstream broke")
	if _, err := ToCSV(failed, CSVOptions{}); err == nil {
		t.Error("ToCSV of failed result should error")
	}
	if _, err := ToJSON(failed, false); err == nil {
		t.Error("ToJSON of failed result should error")
	}
	if _, err := ToHTML(failed, 10); err == nil {
		t.Error("ToHTML of failed result should error")
	}
	if _, err := NewCSVChunker(failed, CSVOptions{}, 2); err == nil {
		t.Error("NewCSVChunker of failed result should error")
	}
}
