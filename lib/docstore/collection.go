package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/codes"
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Collection addresses one named set of documents, either directly on
// the store or inside a transaction (see Store.Collection / Tx.Collection).
type Collection struct {
	name string
	db   dbtx
}

func (c Collection) Name() string {
	return c.name
}

// Create inserts doc under the given id. Fails if the id already exists.
func (c Collection) Create(ctx context.Context, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	_, err = c.db.ExecContext(
		ctx,
		"INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)",
		c.name, id, string(data),
	)
	if err != nil {
		return fmt.Errorf("create document %s/%s: %w", c.name, id, err)
	}
	return nil
}

// Get unmarshals the document with the given id into out.
func (c Collection) Get(ctx context.Context, id string, out any) error {
	var data string
	err := c.db.QueryRowContext(
		ctx,
		"SELECT data FROM documents WHERE collection = ? AND id = ?",
		c.name, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get document %s/%s: %w", c.name, id, err)
	}
	return json.Unmarshal([]byte(data), out)
}

// Update merges the given fields into the stored document, leaving all
// other fields untouched. For read-modify-write sequences that must be
// atomic across concurrent writers, call this through a transaction.
func (c Collection) Update(ctx context.Context, id string, fields map[string]any) error {
	var current map[string]any
	err := c.Get(ctx, id, &current)
	if err != nil {
		return err
	}
	for key, value := range fields {
		current[key] = value
	}

	data, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	_, err = c.db.ExecContext(
		ctx,
		"UPDATE documents SET data = ? WHERE collection = ? AND id = ?",
		string(data), c.name, id,
	)
	if err != nil {
		return fmt.Errorf("update document %s/%s: %w", c.name, id, err)
	}
	return nil
}

// Filter is one field comparison applied to a query.
type Filter struct {
	Field string
	Op    string
	Value any
}

func Where(field, op string, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Query selects documents by field comparisons, with optional ordering
// and a result limit.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

var fieldPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

var allowedOps = map[string]string{
	"==": "=",
	"!=": "!=",
	"<":  "<",
	"<=": "<=",
	">":  ">",
	">=": ">=",
}

func jsonField(field string) (string, error) {
	if !fieldPattern.MatchString(field) {
		return "", fmt.Errorf("invalid query field %q", field)
	}
	return fmt.Sprintf("json_extract(data, '$.%s')", field), nil
}

// Run executes the query and returns matching documents in order.
func (c Collection) Run(ctx context.Context, q Query) ([]Document, error) {
	ctx, span := tracer.Start(ctx, "Query")
	defer span.End()

	var sb strings.Builder
	sb.WriteString("SELECT id, data FROM documents WHERE collection = ?")
	args := []any{c.name}

	for _, f := range q.Filters {
		field, err := jsonField(f.Field)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bad filter")
			return nil, err
		}
		op, ok := allowedOps[f.Op]
		if !ok {
			err := fmt.Errorf("invalid query op %q", f.Op)
			span.RecordError(err)
			span.SetStatus(codes.Error, "bad filter")
			return nil, err
		}
		fmt.Fprintf(&sb, " AND %s %s ?", field, op)
		args = append(args, f.Value)
	}

	if q.OrderBy != "" {
		field, err := jsonField(q.OrderBy)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bad order field")
			return nil, err
		}
		direction := "ASC"
		if q.Desc {
			direction = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", field, direction)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}

	rows, err := c.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query documents")
		return nil, fmt.Errorf("query %s: %w", c.name, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id, data string
		err := rows.Scan(&id, &data)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scan document")
			return nil, err
		}
		docs = append(docs, Document{ID: id, Data: []byte(data)})
	}
	return docs, rows.Err()
}
