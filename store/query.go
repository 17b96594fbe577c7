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

package store

import (
	"strings"

	"crawshaw.io/sqlite"
	"github.com/pkg/errors"
)

// ErrElementNotExists is returned by Get for unknown ids.
var ErrElementNotExists = errors.New("element does not exist")

// Get retrieves a single element.
func (store *Store) Get(id string) (JSONElement, error) {
	stmt, err := store.conn.Prepare("SELECT json FROM `elements` WHERE id = $id")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$id", id)

	elements, err := rowsToElements(stmt)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, errors.Wrap(ErrElementNotExists, id)
	}
	return elements[0], nil
}

// Select retrieves the elements that match any of the conditions. A
// condition matches if every field matches its LIKE pattern. Nested fields
// are addressed with dots, e.g. "standard.modified".
func (store *Store) Select(conditions []map[string]string) ([]JSONElement, error) {
	var ors []string
	var args []string
	for _, condition := range conditions {
		var ands []string
		for field, pattern := range condition {
			ands = append(ands, "json_extract(json, ?) LIKE ?")
			args = append(args, jsonPath(field), pattern)
		}
		if len(ands) > 0 {
			ors = append(ors, "("+strings.Join(ands, " AND ")+")")
		}
	}

	query := "SELECT json FROM `elements`"
	if len(ors) > 0 {
		query += " WHERE " + strings.Join(ors, " OR ")
	}
	query += " ORDER BY insert_time, rowid"

	stmt, err := store.conn.Prepare(query)
	if err != nil {
		return nil, err
	}
	for i, arg := range args {
		stmt.BindText(i+1, arg)
	}
	return rowsToElements(stmt)
}

// Search returns the elements matching a full text query.
func (store *Store) Search(q string) ([]JSONElement, error) {
	stmt, err := store.conn.Prepare("SELECT json FROM `elements` WHERE elements = $query ORDER BY rank")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$query", q)
	return rowsToElements(stmt)
}

// All returns every element.
func (store *Store) All() ([]JSONElement, error) {
	return store.Select(nil)
}

func rowsToElements(stmt *sqlite.Stmt) ([]JSONElement, error) {
	elements := []JSONElement{}
	for {
		if hasRow, err := stmt.Step(); err != nil {
			stmt.Reset()
			return nil, err
		} else if !hasRow {
			break
		}
		elements = append(elements, JSONElement(stmt.GetText("json")))
	}
	return elements, stmt.Reset()
}
