package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/kansenki/internal/apperror"
	"github.com/sakif/kansenki/internal/model"
	"github.com/sakif/kansenki/internal/repository"
)

var _ repository.DocumentStore = (*DB)(nil)

// timeLayout is what this store writes. Imported documents may still carry
// ISO strings with offsets or {seconds, nanoseconds} objects, which is why
// ordering goes through orderKeySQL rather than the raw JSON value.
const timeLayout = model.JSONLayout

// Create inserts a new document. An empty id is replaced with an xid.
func (db *DB) Create(ctx context.Context, collection, id string, doc model.Document) (string, error) {
	if id == "" {
		id = xid.New().String()
	}

	data, err := encode(doc)
	if err != nil {
		return "", fmt.Errorf("sqlite: encoding %s/%s: %w", collection, id, err)
	}

	now := time.Now().UTC()
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (collection, id) DO NOTHING`,
		collection, id, data, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: creating %s/%s: %w", collection, id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return "", apperror.Conflict(collection, id)
	}

	return id, nil
}

// Get returns one document with its id under "id".
func (db *DB) Get(ctx context.Context, collection, id string) (model.Document, error) {
	var data string
	err := db.conn.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound(collection, id)
		}
		return nil, fmt.Errorf("sqlite: getting %s/%s: %w", collection, id, err)
	}

	return decode(id, data)
}

// Update merges fields into the stored document inside a transaction so that
// concurrent merges of different fields do not lose each other's writes.
func (db *DB) Update(ctx context.Context, collection, id string, fields model.Document) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning update of %s/%s: %w", collection, id, err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return apperror.NotFound(collection, id)
		}
		return fmt.Errorf("sqlite: reading %s/%s for update: %w", collection, id, err)
	}

	current, err := decode(id, data)
	if err != nil {
		return err
	}
	delete(current, "id")
	for k, v := range fields {
		if k == "id" {
			continue
		}
		current[k] = v
	}

	merged, err := encode(current)
	if err != nil {
		return fmt.Errorf("sqlite: encoding %s/%s: %w", collection, id, err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		merged, time.Now().UTC(), collection, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating %s/%s: %w", collection, id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing update of %s/%s: %w", collection, id, err)
	}
	return nil
}

// Increment adds delta to a numeric field in a single statement. A missing
// field counts as 0.
func (db *DB) Increment(ctx context.Context, collection, id, field string, delta int) error {
	path := jsonPath(field)
	result, err := db.conn.ExecContext(ctx,
		`UPDATE documents
		 SET data = json_set(data, ?, COALESCE(json_extract(data, ?), 0) + ?),
		     updated_at = ?
		 WHERE collection = ? AND id = ?`,
		path, path, delta, time.Now().UTC(), collection, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing %s on %s/%s: %w", field, collection, id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound(collection, id)
	}
	return nil
}

// Delete removes a document.
func (db *DB) Delete(ctx context.Context, collection, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting %s/%s: %w", collection, id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound(collection, id)
	}
	return nil
}

// Query runs a filtered, ordered, limited select over one collection.
func (db *DB) Query(ctx context.Context, collection string, q repository.Query) ([]model.Document, error) {
	var sb strings.Builder
	args := []any{collection}

	sb.WriteString(`SELECT id, data FROM documents WHERE collection = ?`)

	for _, f := range q.Where {
		clause, clauseArgs, err := filterSQL(f)
		if err != nil {
			return nil, err
		}
		sb.WriteString(" AND ")
		sb.WriteString(clause)
		args = append(args, clauseArgs...)
	}

	if q.OrderBy != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		if q.OrderBy == repository.FieldID {
			sb.WriteString(" ORDER BY id " + dir)
		} else {
			key, keyArgs := orderKeySQL(jsonPath(q.OrderBy))
			sb.WriteString(" ORDER BY " + key + " " + dir + ", id " + dir)
			args = append(args, keyArgs...)
		}
	}

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make([]model.Document, 0)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("sqlite: scanning %s row: %w", collection, err)
		}
		doc, err := decode(id, data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating %s: %w", collection, err)
	}

	return docs, nil
}

// orderKeySQL builds the sort key for the value at path. Every timestamp
// shape becomes Unix seconds so they compare with each other:
//
//   - {seconds, nanoseconds} and {_seconds, _nanoseconds} objects
//   - text that starts with a YYYY-MM-DD date, read by unixepoch
//
// Other values (numbers, plain text) sort as themselves.
func orderKeySQL(path string) (string, []any) {
	const isoDate = "[0-9][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9]*"
	key := `CASE json_type(data, ?)
		WHEN 'object' THEN
			COALESCE(json_extract(data, ?), json_extract(data, ?))
			+ COALESCE(json_extract(data, ?), json_extract(data, ?), 0) / 1e9
		WHEN 'text' THEN
			CASE WHEN json_extract(data, ?) GLOB '` + isoDate + `'
				THEN COALESCE(unixepoch(json_extract(data, ?), 'subsec'), json_extract(data, ?))
				ELSE json_extract(data, ?)
			END
		ELSE json_extract(data, ?)
	END`
	return key, []any{
		path,
		path + `."seconds"`, path + `."_seconds"`,
		path + `."nanoseconds"`, path + `."_nanoseconds"`,
		path,
		path, path,
		path,
		path,
	}
}

func filterSQL(f repository.Filter) (string, []any, error) {
	target := "json_extract(data, ?)"
	targetArgs := []any{jsonPath(f.Field)}
	if f.Field == repository.FieldID {
		target = "id"
		targetArgs = nil
	}

	switch f.Op {
	case repository.OpEqual, "":
		return target + " = ?", append(targetArgs, sqlArg(f.Value)), nil

	case repository.OpIn:
		values := repository.InValues(f.Value)
		if len(values) == 0 {
			// IN () matches nothing.
			return "0", nil, nil
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
		args := targetArgs
		for _, v := range values {
			args = append(args, sqlArg(v))
		}
		return target + " IN (" + placeholders + ")", args, nil

	case repository.OpArrayContains:
		if f.Field == repository.FieldID {
			return "", nil, fmt.Errorf("sqlite: array-contains on document id")
		}
		return `EXISTS (SELECT 1 FROM json_each(documents.data, ?) WHERE json_each.value = ?)`,
			[]any{jsonPath(f.Field), sqlArg(f.Value)}, nil
	}

	return "", nil, fmt.Errorf("sqlite: unsupported filter operator %q", f.Op)
}

// jsonPath turns "author.id" into `$."author"."id"`.
func jsonPath(field string) string {
	parts := strings.Split(field, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, ``) + `"`
	}
	return "$." + strings.Join(parts, ".")
}

// sqlArg converts values into what json_extract compares equal: JSON booleans
// come back as 1/0 and timestamps as fixed-width strings.
func sqlArg(v any) any {
	switch t := v.(type) {
	case bool:
		if t {
			return 1
		}
		return 0
	case time.Time:
		return t.UTC().Format(timeLayout)
	}
	return v
}

func encode(doc model.Document) (string, error) {
	raw, err := json.Marshal(encodeValue(map[string]any(doc)))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func encodeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(timeLayout)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(timeLayout)
	case model.Timestamp:
		if t.IsZero() {
			return nil
		}
		return t.UTC().Format(timeLayout)
	case model.Document:
		return encodeValue(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = encodeValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = encodeValue(val)
		}
		return out
	}
	return v
}

func decode(id, data string) (model.Document, error) {
	var doc model.Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("sqlite: decoding document %s: %w", id, err)
	}
	if doc == nil {
		doc = model.Document{}
	}
	doc["id"] = id
	return doc, nil
}
