package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/supergnaw/nestbox/cli/internal/config"
	"github.com/supergnaw/nestbox/cli/internal/filter"
	"github.com/supergnaw/nestbox/query/sqlgen"
	"github.com/supergnaw/nestbox/runtime/client"
)

// parseAssignments turns col=value pairs into a row. Values are kept as
// text; "NULL" means NULL.
func parseAssignments(pairs []string) (client.Row, error) {
	row := make(client.Row, len(pairs))
	for _, pair := range pairs {
		col, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("expected column=value, got %q", pair)
		}
		col = strings.TrimSpace(col)
		if _, err := sqlgen.ValidIdentifier(col); err != nil {
			return nil, err
		}
		if value == "NULL" {
			row[col] = nil
			continue
		}
		row[col] = value
	}
	return row, nil
}

// parseOrder reads "column" or "column:desc".
func parseOrder(spec string) (string, string) {
	col, dir, _ := strings.Cut(spec, ":")
	return strings.TrimSpace(col), strings.ToUpper(strings.TrimSpace(dir))
}

// whereOptions parses a --where expression into predicates and the matching
// conjunction option.
func whereOptions(expr string) (sqlgen.Where, []client.QueryOption, error) {
	where, conjunction, err := filter.Parse(expr)
	if err != nil {
		return nil, nil, err
	}
	return where, []client.QueryOption{client.Conjunction(conjunction)}, nil
}

// readRows loads a JSON object or array of objects from path.
func readRows(path string) ([]client.Row, error) {
	data, err := afero.ReadFile(config.AppFs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return client.DecodeRows(data)
}

// writeOutput writes data to path, or stdout when path is empty or "-".
func writeOutput(path string, data []byte, stdout func([]byte) error) error {
	if path == "" || path == "-" {
		return stdout(data)
	}
	return afero.WriteFile(config.AppFs, path, data, 0o644)
}

// plainRows converts client rows for the ui package.
func plainRows(rows []client.Row) []map[string]interface{} {
	out := make([]map[string]interface{}, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}

// jsonToYAML re-encodes a JSON dump as YAML. Numbers keep their JSON text.
func jsonToYAML(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return yaml.Marshal(v)
}

// yamlToJSON converts a YAML dump into the JSON the client loads.
func yamlToJSON(data []byte) ([]byte, error) {
	var v interface{}
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
