package export

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/atlas-insights/sibyl/internal/executor"
)

// EncodeResult writes a query result as a parquet file with one optional
// string column per result column. Every cell is rendered as text so the
// file shape never depends on what the statement happened to select.
func EncodeResult(result executor.Result) ([]byte, int64, error) {
	if len(result.Columns) == 0 {
		return nil, 0, fmt.Errorf("result columns are required")
	}

	group := parquet.Group{}
	for _, col := range result.Columns {
		group[col] = parquet.Optional(parquet.String())
	}
	schema := parquet.NewSchema("query_result", group)

	rows := make([]map[string]any, 0, len(result.Rows))
	for i, row := range result.Rows {
		if len(row) != len(result.Columns) {
			return nil, 0, fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(result.Columns))
		}
		record := make(map[string]any, len(result.Columns))
		for j, col := range result.Columns {
			if row[j] == nil {
				record[col] = nil
				continue
			}
			record[col] = renderCell(row[j])
		}
		rows = append(rows, record)
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[map[string]any](buf, schema)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return nil, 0, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, 0, fmt.Errorf("close parquet writer: %w", err)
	}

	return buf.Bytes(), int64(len(rows)), nil
}

func renderCell(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}
