package validate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/me/gosweep/pkg/model"
)

// EnsureTypeSafety normalizes a loosely-typed payload into the strict
// SimulationResults shape and re-validates the outcome. Coercion is
// deliberately lenient — non-numeric samples become 0 rather than being
// dropped, so series lengths survive intact — but the returned result
// is guaranteed to satisfy Schema, or an error is returned.
func EnsureTypeSafety(raw map[string]any) (*model.SimulationResults, error) {
	result := &model.SimulationResults{
		Data: make(map[string][]float64),
	}

	if v, ok := raw["success"]; ok {
		result.Success = coerceBool(v)
	} else {
		// A payload that bothered to ship data is presumed successful.
		result.Success = raw["data"] != nil
	}

	if v, ok := raw["error"]; ok && v != nil {
		result.Error = fmt.Sprintf("%v", v)
	}
	if v, ok := raw["execution_time"]; ok {
		result.ExecutionTime = coerceFloat(v)
	} else if v, ok := raw["executionTime"]; ok {
		result.ExecutionTime = coerceFloat(v)
	}

	dataRaw, ok := raw["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("payload has no data object")
	}
	for name, seriesRaw := range dataRaw {
		series, err := coerceSeries(seriesRaw)
		if err != nil {
			return nil, fmt.Errorf("series %q: %w", name, err)
		}
		result.Data[name] = series
	}

	result.Columns = coerceColumns(raw["columns"], result.Data)

	if idxRaw, ok := raw["index"]; ok {
		index, err := coerceSeries(idxRaw)
		if err != nil {
			return nil, fmt.Errorf("index: %w", err)
		}
		result.Index = index
	} else if timeSeries, ok := result.Data[model.TimeColumn]; ok {
		// No explicit index; the reserved time key doubles as the axis.
		result.Index = append([]float64(nil), timeSeries...)
	}

	if rep := Schema(result, nil); !rep.Valid {
		return nil, fmt.Errorf("payload invalid after coercion: %s", strings.Join(rep.Errors, "; "))
	}
	return result, nil
}

// ParsePayload decodes a raw result file into a strict
// SimulationResults via EnsureTypeSafety.
func ParsePayload(data []byte) (*model.SimulationResults, error) {
	var raw map[string]any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode result payload: %w", err)
	}
	return EnsureTypeSafety(raw)
}

// coerceColumns keeps caller-declared columns when present, otherwise
// derives them from the data keys: time axis first, the rest sorted.
func coerceColumns(raw any, data map[string][]float64) []string {
	if list, ok := raw.([]any); ok && len(list) > 0 {
		cols := make([]string, 0, len(list))
		for _, item := range list {
			cols = append(cols, fmt.Sprintf("%v", item))
		}
		return cols
	}

	names := make([]string, 0, len(data))
	for name := range data {
		if name == model.TimeColumn {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if _, ok := data[model.TimeColumn]; ok {
		return append([]string{model.TimeColumn}, names...)
	}
	return names
}

// coerceSeries converts an arbitrary array value into float64 samples.
func coerceSeries(raw any) ([]float64, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array, got %T", raw)
	}
	series := make([]float64, len(list))
	for i, item := range list {
		series[i] = coerceFloat(item)
	}
	return series, nil
}

// coerceFloat converts a loosely-typed sample to float64. Anything
// unconvertible (nil, objects, junk strings) becomes 0 so that series
// lengths are preserved.
func coerceFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		return f
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// coerceBool converts a loosely-typed flag to bool.
func coerceBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(x)))
		return err == nil && b
	case float64:
		return x != 0
	case json.Number:
		f, _ := x.Float64()
		return f != 0
	case int:
		return x != 0
	default:
		return false
	}
}
