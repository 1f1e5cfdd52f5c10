// Package docstore is a small JSON document store on top of sqlite.
//
// Scrape jobs and snapshots are schemaless documents keyed by
// (collection, id); filtering and ordering go through sqlite's
// json_extract so callers can query on any document field. The store
// doubles as the coordination point between worker processes: its
// transactions provide the read-then-conditional-write needed for job
// leasing.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	_ "embed"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

var tracer = otel.Tracer("lib/docstore")

var ErrNotFound = errors.New("document not found")

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a local sqlite-backed store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		os.MkdirAll(filepath.Dir(path), 0777)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open docstore: %w", err)
	}

	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open docstore: %w", err)
	}

	return New(db)
}

// OpenRemote opens a store backed by a remote libsql database.
func OpenRemote(url string) (*Store, error) {
	db, err := sql.Open("libsql", url)
	if err != nil {
		return nil, fmt.Errorf("open remote docstore: %w", err)
	}
	return New(db)
}

// New wraps an existing database handle and applies the schema.
func New(db *sql.DB) (*Store, error) {
	_, err := db.Exec(Schema)
	if err != nil {
		return nil, fmt.Errorf("apply docstore schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Collection returns a handle scoped to one named collection.
func (s *Store) Collection(name string) Collection {
	return Collection{name: name, db: s.db}
}

// Tx is a transaction-scoped view of the store. Reads and writes made
// through it are atomic with respect to other transactions, which is
// what job leasing relies on for mutual exclusion.
type Tx struct {
	tx *sql.Tx
}

func (t Tx) Collection(name string) Collection {
	return Collection{name: name, db: t.tx}
}

// RunTransaction runs fn inside a store transaction, committing when fn
// returns nil and rolling back otherwise.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	ctx, span := tracer.Start(ctx, "RunTransaction")
	defer span.End()

	sqltx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "begin transaction")
		return err
	}
	defer sqltx.Rollback()

	err = fn(Tx{tx: sqltx})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction callback")
		return err
	}

	err = sqltx.Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit transaction")
		return err
	}
	return nil
}

// NewID returns a fresh document id. Ids are generated client-side so a
// document can be referenced (e.g. a job pointing at its snapshot)
// before the document itself is written.
func NewID() string {
	return uuid.NewString()
}

// Document is one raw record returned from a query.
type Document struct {
	ID   string
	Data []byte
}

func (d Document) Decode(out any) error {
	return json.Unmarshal(d.Data, out)
}
