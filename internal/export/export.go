package export

import (
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/me/gosweep/pkg/model"
)

// JSONEnvelope wraps an exported result with generation metadata.
type JSONEnvelope struct {
	Metadata JSONMetadata             `json:"metadata"`
	Result   *model.SimulationResults `json:"result"`
}

// JSONMetadata describes an exported document.
type JSONMetadata struct {
	GeneratedAt time.Time `json:"generated_at"`
	Columns     []string  `json:"columns"`
	Samples     int       `json:"samples"`
}

// ToJSON renders the result inside a metadata envelope, optionally
// pretty-printed.
func ToJSON(result *model.SimulationResults, pretty bool) ([]byte, error) {
	if !result.Success {
		return nil, fmt.Errorf("cannot export failed result: %s", result.Error)
	}
	envelope := JSONEnvelope{
		Metadata: JSONMetadata{
			GeneratedAt: time.Now().UTC(),
			Columns:     exportColumns(result),
			Samples:     result.Len(),
		},
		Result: result,
	}
	if pretty {
		return json.MarshalIndent(envelope, "", "  ")
	}
	return json.Marshal(envelope)
}

var htmlTableTemplate = template.Must(template.New("table").Parse(`<table>
<thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
{{if .Truncated}}<p>Showing {{len .Rows}} of {{.Total}} rows.</p>
{{end}}`))

type htmlTableData struct {
	Columns   []string
	Rows      [][]string
	Truncated bool
	Total     int
}

// ToHTML renders the result as an HTML table capped at maxRows sample
// rows, reporting truncation below the table. maxRows < 1 means no cap.
func ToHTML(result *model.SimulationResults, maxRows int) (string, error) {
	if !result.Success {
		return "", fmt.Errorf("cannot export failed result: %s", result.Error)
	}

	cols := exportColumns(result)
	if len(cols) == 0 {
		return "", fmt.Errorf("result has no columns to export")
	}

	total := result.Len()
	n := total
	if maxRows > 0 && n > maxRows {
		n = maxRows
	}

	data := htmlTableData{
		Columns:   cols,
		Rows:      make([][]string, 0, n),
		Truncated: n < total,
		Total:     total,
	}
	for i := 0; i < n; i++ {
		row := make([]string, len(cols))
		for j, col := range cols {
			row[j] = formatSample(result.Data[col][i])
		}
		data.Rows = append(data.Rows, row)
	}

	var sb strings.Builder
	if err := htmlTableTemplate.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return sb.String(), nil
}

func formatSample(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", v), "0"), ".")
}
