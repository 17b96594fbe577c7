// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

// Package store is a sqlite based RecordSink. File records, unallocated
// ranges and filesystem descriptions are stored as JSON elements in a single
// FTS5 table, so they can be searched with full text queries and selected by
// field. On Close a view per element type is created that exposes the fields
// of the elements as columns.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"crawshaw.io/sqlite"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	storeVersion  = 1
	applicationID = 1718837614 // "fsan"
	discriminator = "type"
	memory        = ":memory:"
)

// ErrStoreExists is returned by New if the store file already exists.
var ErrStoreExists = errors.New("store already exists")

// ErrStoreNotExists is returned by Open if the store file does not exist.
var ErrStoreNotExists = errors.New("store does not exist")

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger of the store.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Store is a sqlite database of JSON elements. A Store holds a single
// connection and is not safe for concurrent use.
type Store struct {
	conn    *sqlite.Conn
	types   *typeMap
	schemas schemas
	logger  *zap.Logger
	inTx    bool
}

// New creates a new store.
func New(url string, options ...Option) (*Store, error) {
	return open(url, true, options)
}

// Open opens an existing store.
func Open(url string, options ...Option) (*Store, error) {
	return open(url, false, options)
}

func open(url string, create bool, options []Option) (*Store, error) { // nolint:gocyclo
	store := &Store{types: newTypeMap(), logger: zap.NewNop()}
	for _, option := range options {
		option(store)
	}

	if url != memory {
		exists := true
		if _, err := os.Stat(url); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			exists = false
		}

		if create && exists {
			return nil, errors.Wrap(ErrStoreExists, url)
		}
		if !create && !exists {
			return nil, errors.Wrap(ErrStoreNotExists, url)
		}

		if create {
			if err := os.MkdirAll(filepath.Dir(url), 0750); err != nil {
				return nil, err
			}
			store.logger.Info("creating store", zap.String("path", url))
		}
	}

	var err error
	store.conn, err = sqlite.OpenConn(url, 0)
	if err != nil {
		return nil, errors.Wrap(err, "could not open store")
	}

	if err := store.setup(create); err != nil {
		store.conn.Close()
		return nil, err
	}

	store.schemas, err = loadSchemas()
	if err != nil {
		store.conn.Close()
		return nil, err
	}
	return store, nil
}

func (store *Store) setup(create bool) error {
	if create {
		if err := setPragma(store.conn, "application_id", applicationID); err != nil {
			return err
		}
		if err := setPragma(store.conn, "user_version", storeVersion); err != nil {
			return err
		}
		return store.exec("CREATE VIRTUAL TABLE `elements` " +
			"USING fts5(id UNINDEXED, json, insert_time UNINDEXED, tokenize=\"unicode61 tokenchars '/.'\")")
	}

	id, err := pragma(store.conn, "application_id")
	if err != nil {
		return err
	}
	if id != applicationID {
		return fmt.Errorf("wrong file format (application_id is %d, requires %d)", id, applicationID)
	}

	version, err := pragma(store.conn, "user_version")
	if err != nil {
		return err
	}
	if version != storeVersion {
		return fmt.Errorf("wrong file format (user_version is %d, requires %d)", version, storeVersion)
	}

	return store.setupTypes()
}

// setupTypes reads the fields of the existing views, so views are extended
// rather than replaced when new fields are added.
func (store *Store) setupTypes() error {
	stmt, err := store.conn.Prepare("SELECT name FROM sqlite_master WHERE type = 'view'")
	if err != nil {
		return err
	}

	var views []string
	for {
		if hasRow, err := stmt.Step(); err != nil {
			return err
		} else if !hasRow {
			break
		}
		views = append(views, stmt.GetText("name"))
	}
	if err := stmt.Finalize(); err != nil {
		return err
	}

	for _, view := range views {
		pragmaStmt, err := store.conn.Prepare(fmt.Sprintf("PRAGMA table_info (\"%s\")", view))
		if err != nil {
			return err
		}
		for {
			if hasRow, err := pragmaStmt.Step(); err != nil {
				return err
			} else if !hasRow {
				break
			}
			store.types.add(view, pragmaStmt.GetText("name"))
		}
		if err := pragmaStmt.Finalize(); err != nil {
			return err
		}
	}
	store.types.changed = false
	return nil
}

// Close rolls back uncommitted records, updates the views and closes the
// database.
func (store *Store) Close() error {
	if store.inTx {
		if err := store.exec("ROLLBACK"); err != nil {
			store.logger.Error("could not roll back", zap.Error(err))
		}
		store.inTx = false
	}
	if store.types.changed {
		if err := store.createViews(); err != nil {
			store.logger.Error("could not create views", zap.Error(err))
		}
	}
	return store.conn.Close()
}

func (store *Store) createViews() error {
	for typeName, fields := range store.types.all() {
		if err := store.exec(fmt.Sprintf("DROP VIEW IF EXISTS '%s'", typeName)); err != nil {
			return err
		}
		var columns []string
		for field := range fields {
			columns = append(columns, fmt.Sprintf("json_extract(json, '%s') as '%s'", jsonPath(field), field))
		}
		sort.Strings(columns)
		err := store.exec(fmt.Sprintf("CREATE VIEW '%s' AS SELECT %s FROM elements WHERE json_extract(json, '%s') = '%s'",
			typeName, strings.Join(columns, ", "), jsonPath(discriminator), typeName))
		if err != nil {
			return err
		}
	}
	store.types.changed = false
	return nil
}

func (store *Store) exec(query string) error {
	stmt, err := store.conn.Prepare(query)
	if err != nil {
		return err
	}
	if _, err := stmt.Step(); err != nil {
		return err
	}
	return stmt.Finalize()
}

func pragma(conn *sqlite.Conn, name string) (int64, error) {
	stmt, err := conn.Prepare("PRAGMA " + name)
	if err != nil {
		return 0, err
	}
	if _, err := stmt.Step(); err != nil {
		return 0, err
	}
	i := stmt.GetInt64(name)
	return i, stmt.Finalize()
}

func setPragma(conn *sqlite.Conn, name string, i int64) error {
	stmt, err := conn.Prepare(fmt.Sprintf("PRAGMA %s = %d", name, i))
	if err != nil {
		return err
	}
	if _, err := stmt.Step(); err != nil {
		return err
	}
	return stmt.Finalize()
}
