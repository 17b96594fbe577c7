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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"crawshaw.io/sqlite/sqlitex"
	"github.com/pkg/errors"

	"github.com/forensicanalysis/fsanalyzer"
)

var _ fsanalyzer.RecordSink = (*Store)(nil)

type unallocatedRange struct {
	PartitionID int
	Start       uint64
	End         uint64
	Blocks      uint64
}

// InsertBatch stores file records. The records become durable with the next
// call to Commit. If a record cannot be stored, the whole uncommitted batch
// is rolled back.
func (store *Store) InsertBatch(records []fsanalyzer.FileRecord) error {
	if !store.inTx {
		if err := store.exec("BEGIN"); err != nil {
			return errors.Wrap(err, "could not begin transaction")
		}
		store.inTx = true
	}

	for _, record := range records {
		key := fmt.Sprintf("%d/%s/%d/%s%s/%d", record.PartitionID, record.Inode, record.ParentID,
			record.ParentPath, record.Name, record.RecordType)
		if _, err := store.insert(TypeFile, key, record); err != nil {
			if rollbackErr := store.exec("ROLLBACK"); rollbackErr != nil {
				err = errors.Wrapf(err, "rollback failed (%s)", rollbackErr)
			}
			store.inTx = false
			return err
		}
	}
	return nil
}

// Commit makes all inserted records durable.
func (store *Store) Commit() error {
	if !store.inTx {
		return nil
	}
	store.inTx = false
	return errors.Wrap(store.exec("COMMIT"), "could not commit")
}

// InsertFilesystemInfo stores the description of a filesystem. There is one
// description per partition.
func (store *Store) InsertFilesystemInfo(info fsanalyzer.FilesystemInfo) (id string, err error) {
	defer sqlitex.Save(store.conn)(&err)
	return store.insert(TypeFilesystemInfo, fmt.Sprint(info.PartitionID), info)
}

// InsertUnallocated stores the unallocated block ranges of a partition.
func (store *Store) InsertUnallocated(partitionID int, ranges []fsanalyzer.UnallocatedRange) (err error) {
	defer sqlitex.Save(store.conn)(&err)
	for _, r := range ranges {
		element := unallocatedRange{PartitionID: partitionID, Start: r.Start, End: r.End, Blocks: r.Len()}
		if _, err := store.insert(TypeUnallocated, fmt.Sprintf("%d/%d", partitionID, r.Start), element); err != nil {
			return err
		}
	}
	return nil
}

// insert validates and stores a struct as element. An existing element with
// the same id is replaced.
func (store *Store) insert(elementType, key string, v interface{}) (string, error) {
	id, rowid := elementID(elementType, key)
	element := toElement(elementType, v)
	element["id"] = id

	b, err := json.Marshal(element)
	if err != nil {
		return "", err
	}

	flaws, err := store.schemas.validate(b)
	if err != nil {
		return "", errors.Wrap(err, "validation failed")
	}
	if len(flaws) > 0 {
		return "", fmt.Errorf("element could not be validated [%s]", strings.Join(flaws, ","))
	}

	flat := map[string]interface{}{}
	flatten("", element, flat)
	store.types.addAll(elementType, flat)

	stmt, err := store.conn.Prepare("DELETE FROM `elements` WHERE rowid = $rowid")
	if err != nil {
		return "", err
	}
	stmt.SetInt64("$rowid", rowid)
	if _, err := stmt.Step(); err != nil {
		stmt.Reset()
		return "", errors.Wrap(err, "could not replace element")
	}
	if err := stmt.Reset(); err != nil {
		return "", err
	}

	stmt, err = store.conn.Prepare("INSERT INTO `elements` (rowid, id, json, insert_time) VALUES ($rowid, $id, $json, $time)")
	if err != nil {
		return "", err
	}
	stmt.SetInt64("$rowid", rowid)
	stmt.SetText("$id", id)
	stmt.SetText("$json", string(b))
	stmt.SetText("$time", time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	if _, err := stmt.Step(); err != nil {
		stmt.Reset()
		return "", errors.Wrap(err, "could not insert element")
	}
	return id, stmt.Reset()
}
