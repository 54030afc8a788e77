package sqlconn

import (
	"context"
	"database/sql"
	"strings"

	dbtypes "github.com/gaborage/querybricks/database/types"
)

// executor runs compiled SQL on a pool or inside a transaction.
type executor struct {
	q       querier
	dialect Dialect
}

// Vendor returns the backend identifier.
func (e *executor) Vendor() dbtypes.Vendor {
	return e.dialect.Vendor()
}

// Capabilities returns the declared feature set of the backend.
func (e *executor) Capabilities() dbtypes.CapabilitySet {
	return dbtypes.DefaultCapabilities(e.dialect.Vendor())
}

// Execute runs a compiled request. Reads and inserts with RETURNING produce rows;
// everything else reports affected rows and, where the driver has one, the last
// insert id.
func (e *executor) Execute(ctx context.Context, req *dbtypes.Request) (*dbtypes.Result, error) {
	if req == nil || req.SQL == "" {
		return nil, dbtypes.InvalidArgumentf("request has no SQL")
	}

	if req.Operation.Reads() || req.Returning {
		rows, err := e.query(ctx, req.SQL, req.Args)
		if err != nil {
			return nil, dbtypes.NewQueryExecutionError(req, err)
		}
		result := &dbtypes.Result{Rows: rows}
		if req.Returning {
			result.RowsAffected = int64(len(rows))
		}
		return result, nil
	}

	result, err := e.exec(ctx, req.SQL, req.Args)
	if err != nil {
		return nil, dbtypes.NewQueryExecutionError(req, err)
	}
	return result, nil
}

// Raw runs a native SQL string. Statements that produce rows return []dbtypes.Row;
// anything else returns *dbtypes.Result.
func (e *executor) Raw(ctx context.Context, query any, args ...any) (any, error) {
	sqlText, ok := query.(string)
	if !ok || strings.TrimSpace(sqlText) == "" {
		return nil, dbtypes.InvalidArgumentf("raw SQL must be a non-empty string, got %T", query)
	}
	req := &dbtypes.Request{Operation: dbtypes.OpRaw, SQL: sqlText, Args: args}

	if returnsRows(sqlText) {
		rows, err := e.query(ctx, sqlText, args)
		if err != nil {
			return nil, dbtypes.NewQueryExecutionError(req, err)
		}
		return rows, nil
	}

	result, err := e.exec(ctx, sqlText, args)
	if err != nil {
		return nil, dbtypes.NewQueryExecutionError(req, err)
	}
	return result, nil
}

func (e *executor) query(ctx context.Context, query string, args []any) ([]dbtypes.Row, error) {
	rows, err := e.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return ScanRows(rows)
}

func (e *executor) exec(ctx context.Context, query string, args []any) (*dbtypes.Result, error) {
	res, err := e.q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	result := &dbtypes.Result{}
	if n, err := res.RowsAffected(); err == nil {
		result.RowsAffected = n
	}
	if id, err := res.LastInsertId(); err == nil {
		result.LastInsertID = id
		result.HasLastInsertID = true
	}
	return result, nil
}

// ScanRows reads every remaining row into column-keyed maps. Byte slices become strings.
func ScanRows(rows *sql.Rows) ([]dbtypes.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]dbtypes.Row, 0)
	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(dbtypes.Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

var rowKeywords = []string{"SELECT", "WITH", "SHOW", "PRAGMA", "VALUES", "EXPLAIN", "DESCRIBE", "DESC", "TABLE"}

// returnsRows classifies a raw statement by its leading keyword or a RETURNING clause.
func returnsRows(query string) bool {
	fields := strings.Fields(strings.TrimLeft(query, "( \t\r\n"))
	if len(fields) == 0 {
		return false
	}
	first := strings.ToUpper(fields[0])
	for _, kw := range rowKeywords {
		if first == kw {
			return true
		}
	}
	return strings.Contains(strings.ToUpper(query), " RETURNING ")
}
