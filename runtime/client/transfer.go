package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/supergnaw/nestbox/errdefs"
)

// loadBatchSize bounds the rows per insert statement during a load.
const loadBatchSize = 100

// DumpTable returns every row of table as a JSON array.
func (c *Client) DumpTable(ctx context.Context, table string) ([]byte, error) {
	rows, err := c.Select(ctx, table, nil)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rows)
}

// DumpDatabase returns a JSON object of table name to rows. Without tables,
// every table is dumped.
func (c *Client) DumpDatabase(ctx context.Context, tables ...string) ([]byte, error) {
	if len(tables) == 0 {
		tables = c.schema.Tables(ctx)
	}

	dump := make(map[string][]Row, len(tables))
	for _, table := range tables {
		rows, err := c.Select(ctx, table, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to dump %s: %w", table, err)
		}
		dump[table] = rows
	}
	return json.Marshal(dump)
}

// LoadTable upserts the rows of a JSON array into table and returns the rows
// affected.
func (c *Client) LoadTable(ctx context.Context, table string, data []byte) (int64, error) {
	rows, err := DecodeRows(data)
	if err != nil {
		return 0, err
	}
	return c.LoadRows(ctx, table, rows)
}

// DecodeRows decodes a JSON array of objects, or a single object, into rows.
// Numbers become int64 when integral and float64 otherwise.
func DecodeRows(data []byte) ([]Row, error) {
	data = bytes.TrimSpace(data)
	var raw []map[string]interface{}
	if len(data) > 0 && data[0] == '{' {
		var one map[string]interface{}
		if err := decodeJSON(data, &one); err != nil {
			return nil, err
		}
		raw = append(raw, one)
	} else if err := decodeJSON(data, &raw); err != nil {
		return nil, err
	}

	rows := make([]Row, len(raw))
	for i, r := range raw {
		rows[i] = normalizeRow(r)
	}
	return rows, nil
}

// LoadRows upserts rows into table in batches of rows sharing a column set.
func (c *Client) LoadRows(ctx context.Context, table string, rows []Row) (int64, error) {
	var total int64
	for _, batch := range batchRows(rows, loadBatchSize) {
		n, err := c.InsertRows(ctx, table, batch)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// LoadDatabase loads a JSON object of table name to rows, table by table in
// name order.
func (c *Client) LoadDatabase(ctx context.Context, data []byte) (int64, error) {
	var dump map[string]json.RawMessage
	if err := decodeJSON(data, &dump); err != nil {
		return 0, err
	}

	tables := make([]string, 0, len(dump))
	for table := range dump {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	var total int64
	for _, table := range tables {
		n, err := c.LoadTable(ctx, table, dump[table])
		if err != nil {
			return total, fmt.Errorf("failed to load %s: %w", table, err)
		}
		total += n
	}
	return total, nil
}

func decodeJSON(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrMalformedJSON, err)
	}
	return nil
}

// normalizeRow turns json.Number into int64 or float64.
func normalizeRow(r map[string]interface{}) Row {
	row := make(Row, len(r))
	for k, v := range r {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				v = i
			} else if f, err := strconv.ParseFloat(n.String(), 64); err == nil {
				v = f
			} else {
				v = n.String()
			}
		}
		row[k] = v
	}
	return row
}

// batchRows splits rows into consecutive batches of at most size rows with
// identical column sets.
func batchRows(rows []Row, size int) [][]Row {
	var batches [][]Row
	var current []Row
	var key string
	for _, row := range rows {
		k := columnKey(row)
		if len(current) > 0 && (k != key || len(current) == size) {
			batches = append(batches, current)
			current = nil
		}
		key = k
		current = append(current, row)
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func columnKey(row Row) string {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	var b bytes.Buffer
	for _, col := range cols {
		b.WriteString(col)
		b.WriteByte(0)
	}
	return b.String()
}
