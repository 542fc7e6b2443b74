package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/isometry/terraform-provider-ldapmodel/internal/connector"
)

const (
	outputJSON  = "json"
	outputYAML  = "yaml"
	outputTable = "table"
)

// writeRecords renders records in format. Table columns are the sorted union
// of every record's fields; multi-valued fields are joined with newlines.
func writeRecords(w io.Writer, format string, records []connector.Record) error {
	switch format {
	case outputJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	case outputTable:
		writeTable(w, records)
		return nil
	default:
		return fmt.Errorf("unsupported output format %q, expected json, yaml or table", format)
	}
}

func writeTable(w io.Writer, records []connector.Record) {
	var columns []string
	for _, record := range records {
		for field := range record {
			if !slices.Contains(columns, field) {
				columns = append(columns, field)
			}
		}
	}
	slices.Sort(columns)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(columns))
	for i, column := range columns {
		header[i] = column
	}
	t.AppendHeader(header)

	for _, record := range records {
		row := make(table.Row, len(columns))
		for i, column := range columns {
			row[i] = cellValue(record[column])
		}
		t.AppendRow(row)
	}

	t.Render()
}

func cellValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(v, "\n")
	default:
		return fmt.Sprint(v)
	}
}
