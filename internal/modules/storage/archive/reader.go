package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// TableSpec names a table to archive. When CutoffColumn is set only
// rows whose column value lies before the run's cutoff are included;
// otherwise the whole table is snapshotted.
type TableSpec struct {
	Name         string
	CutoffColumn string
}

// TableReader returns table rows as generic maps. Reading through
// database/sql instead of the gorm models keeps dumps aligned with the
// physical schema even when the models lag behind a migration.
type TableReader interface {
	ReadTable(ctx context.Context, spec TableSpec, cutoff time.Time) ([]map[string]interface{}, error)
}

type sqlTableReader struct {
	dsn string
}

func NewSQLTableReader(dsn string) TableReader { return &sqlTableReader{dsn: dsn} }

func (r *sqlTableReader) ReadTable(ctx context.Context, spec TableSpec, cutoff time.Time) ([]map[string]interface{}, error) {
	if !validIdentifier(spec.Name) {
		return nil, fmt.Errorf("invalid table name %q", spec.Name)
	}
	if spec.CutoffColumn != "" && !validIdentifier(spec.CutoffColumn) {
		return nil, fmt.Errorf("invalid column name %q", spec.CutoffColumn)
	}

	db, err := sql.Open("mysql", r.dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query := "SELECT * FROM `" + spec.Name + "`"
	var args []interface{}
	if spec.CutoffColumn != "" {
		query += " WHERE `" + spec.CutoffColumn + "` < ?"
		args = append(args, cutoff)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]map[string]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = normalizeSQLValue(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func validIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			continue
		}
		return false
	}
	return true
}

func normalizeSQLValue(v interface{}) interface{} {
	switch typed := v.(type) {
	case []byte:
		return string(typed)
	default:
		return v
	}
}
