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
	"path/filepath"
	"testing"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/forensicanalysis/fsanalyzer"
)

var (
	reportRecord = fsanalyzer.FileRecord{
		FileID:     42,
		Inode:      "42",
		ParentID:   5,
		ParentPath: "root/",
		Name:       "report.docx",
		Size:       1500,
		Extension:  "docx",
		NameType:   "r",
		MetaType:   "r",
		MetaFlags:  1,
		Standard:   fsanalyzer.Timestamps{Modified: 1600000000, ModifiedNano: 500},
		Hashes:     map[string]string{"SHA-256": "abc"},
	}
	textRecord = fsanalyzer.FileRecord{
		FileID:     31,
		Inode:      "31",
		ParentID:   30,
		ParentPath: "root/docs/",
		Name:       "a.txt",
		Size:       12,
		Extension:  "txt",
		NameType:   "r",
		MetaType:   "r",
	}
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	url := filepath.Join(t.TempDir(), "test.fsanalyzer")
	store, err := New(url)
	require.NoError(t, err)
	return store, url
}

func TestNew(t *testing.T) {
	store, url := newStore(t)
	require.NoError(t, store.Close())

	_, err := New(url)
	assert.True(t, errors.Is(err, ErrStoreExists))
}

func TestNewMemory(t *testing.T) {
	store, err := New(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.InsertBatch([]fsanalyzer.FileRecord{textRecord}))
	require.NoError(t, store.Commit())

	elements, err := store.All()
	require.NoError(t, err)
	assert.Len(t, elements, 1)
	assert.NoError(t, store.Close())
}

func TestOpen(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.fsanalyzer"))
	assert.True(t, errors.Is(err, ErrStoreNotExists))

	store, url := newStore(t)
	require.NoError(t, store.Close())

	store, err = Open(url)
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestOpenWrongFormat(t *testing.T) {
	url := filepath.Join(t.TempDir(), "other.db")
	conn, err := sqlite.OpenConn(url, 0)
	require.NoError(t, err)
	require.NoError(t, sqlitex.Exec(conn, "CREATE TABLE t (a)", nil))
	require.NoError(t, conn.Close())

	_, err = Open(url)
	assert.Error(t, err)
}

func TestInsertBatch(t *testing.T) {
	store, _ := newStore(t)
	defer store.Close()

	require.NoError(t, store.InsertBatch([]fsanalyzer.FileRecord{reportRecord, reportRecord.Slack(2596)}))
	require.NoError(t, store.InsertBatch([]fsanalyzer.FileRecord{textRecord}))
	require.NoError(t, store.Commit())

	elements, err := store.All()
	require.NoError(t, err)
	assert.Len(t, elements, 3)

	elements, err = store.Select([]map[string]string{{"name": "report.docx"}})
	require.NoError(t, err)
	require.Len(t, elements, 1)

	element := elements[0]
	assert.Equal(t, TypeFile, gjson.GetBytes(element, "type").String())
	assert.Equal(t, "root/", gjson.GetBytes(element, "parent_path").String())
	assert.Equal(t, int64(1500), gjson.GetBytes(element, "size").Int())
	assert.Equal(t, int64(0), gjson.GetBytes(element, "record_type").Int())
	assert.Equal(t, int64(1600000000), gjson.GetBytes(element, "standard.modified").Int())
	assert.Equal(t, "abc", gjson.GetBytes(element, "hashes.SHA-256").String())
	assert.True(t, gjson.GetBytes(element, "file_name.modified").Exists())
	assert.Equal(t, int64(0), gjson.GetBytes(element, "file_name.modified").Int())

	got, err := store.Get(gjson.GetBytes(element, "id").String())
	require.NoError(t, err)
	assert.JSONEq(t, string(element), string(got))
}

func TestInsertBatchIdempotent(t *testing.T) {
	store, _ := newStore(t)
	defer store.Close()

	for i := 0; i < 2; i++ {
		require.NoError(t, store.InsertBatch([]fsanalyzer.FileRecord{reportRecord, textRecord}))
		require.NoError(t, store.Commit())
	}

	elements, err := store.All()
	require.NoError(t, err)
	assert.Len(t, elements, 2)
}

func TestInsertBatchInvalid(t *testing.T) {
	store, _ := newStore(t)
	defer store.Close()

	require.NoError(t, store.InsertBatch([]fsanalyzer.FileRecord{reportRecord}))
	require.NoError(t, store.Commit())

	unnamed := textRecord
	unnamed.Name = ""
	err := store.InsertBatch([]fsanalyzer.FileRecord{textRecord, unnamed})
	assert.Error(t, err)
	assert.NoError(t, store.Commit())

	elements, err := store.All()
	require.NoError(t, err)
	assert.Len(t, elements, 1)

	require.NoError(t, store.InsertBatch([]fsanalyzer.FileRecord{textRecord}))
	require.NoError(t, store.Commit())
	elements, err = store.All()
	require.NoError(t, err)
	assert.Len(t, elements, 2)
}

func TestCloseRollsBack(t *testing.T) {
	store, url := newStore(t)
	require.NoError(t, store.InsertBatch([]fsanalyzer.FileRecord{reportRecord}))
	require.NoError(t, store.Close())

	store, err := Open(url)
	require.NoError(t, err)
	defer store.Close()

	elements, err := store.All()
	require.NoError(t, err)
	assert.Empty(t, elements)
}

func TestInsertFilesystemInfo(t *testing.T) {
	store, _ := newStore(t)
	defer store.Close()

	info := fsanalyzer.FilesystemInfo{
		PartitionID:    1,
		FilesystemType: "ntfs",
		BlockSize:      4096,
		BlockCount:     100,
		RootInum:       5,
		FirstInum:      0,
		LastInum:       200,
	}
	id, err := store.InsertFilesystemInfo(info)
	require.NoError(t, err)

	again, err := store.InsertFilesystemInfo(info)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	element, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, TypeFilesystemInfo, gjson.GetBytes(element, "type").String())
	assert.Equal(t, "ntfs", gjson.GetBytes(element, "filesystem_type").String())
	assert.Equal(t, int64(4096), gjson.GetBytes(element, "block_size").Int())
	assert.Equal(t, int64(5), gjson.GetBytes(element, "root_inum").Int())
}

func TestInsertUnallocated(t *testing.T) {
	store, _ := newStore(t)
	defer store.Close()

	ranges := []fsanalyzer.UnallocatedRange{{Start: 1, End: 2}, {Start: 4, End: 4}}
	require.NoError(t, store.InsertUnallocated(0, ranges))

	elements, err := store.Select([]map[string]string{{"type": TypeUnallocated}})
	require.NoError(t, err)
	require.Len(t, elements, 2)

	blocks := map[int64]int64{}
	for _, element := range elements {
		blocks[gjson.GetBytes(element, "start").Int()] = gjson.GetBytes(element, "blocks").Int()
	}
	assert.Equal(t, map[int64]int64{1: 2, 4: 1}, blocks)
}

func TestGetMissing(t *testing.T) {
	store, _ := newStore(t)
	defer store.Close()

	_, err := store.Get("file-info--00000000-0000-0000-0000-000000000000")
	assert.True(t, errors.Is(err, ErrElementNotExists))
}

func TestSelect(t *testing.T) {
	store, _ := newStore(t)
	defer store.Close()

	require.NoError(t, store.InsertBatch([]fsanalyzer.FileRecord{reportRecord, textRecord}))
	require.NoError(t, store.Commit())

	tests := []struct {
		name       string
		conditions []map[string]string
		want       int
	}{
		{"field", []map[string]string{{"extension": "txt"}}, 1},
		{"pattern", []map[string]string{{"parent_path": "root/%"}}, 2},
		{"nested", []map[string]string{{"standard.modified": "1600000000"}}, 1},
		{"and", []map[string]string{{"extension": "txt", "name": "report.docx"}}, 0},
		{"or", []map[string]string{{"extension": "txt"}, {"name": "report.docx"}}, 2},
		{"none", []map[string]string{{"name": "missing"}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			elements, err := store.Select(tt.conditions)
			require.NoError(t, err)
			assert.Len(t, elements, tt.want)
		})
	}
}

func TestSearch(t *testing.T) {
	store, _ := newStore(t)
	defer store.Close()

	require.NoError(t, store.InsertBatch([]fsanalyzer.FileRecord{reportRecord, textRecord}))
	require.NoError(t, store.Commit())

	tests := []struct {
		query string
		want  string
	}{
		{`"report.docx"`, "report.docx"},
		{"txt", "a.txt"},
		{`"root/docs/"`, "a.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			elements, err := store.Search(tt.query)
			require.NoError(t, err)
			require.Len(t, elements, 1)
			assert.Equal(t, tt.want, gjson.GetBytes(elements[0], "name").String())
		})
	}
}

func TestViews(t *testing.T) {
	store, url := newStore(t)
	require.NoError(t, store.InsertBatch([]fsanalyzer.FileRecord{reportRecord, textRecord}))
	require.NoError(t, store.Commit())
	require.NoError(t, store.Close())

	store, err := Open(url)
	require.NoError(t, err)
	defer store.Close()

	assert.True(t, store.types.all()[TypeFile]["standard.modified"])
	assert.False(t, store.types.changed)

	var names []string
	err = sqlitex.Exec(store.conn, "SELECT name FROM \"file-info\" ORDER BY name", func(stmt *sqlite.Stmt) error {
		names = append(names, stmt.ColumnText(0))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "report.docx"}, names)
}
