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

package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/forensicanalysis/fsanalyzer/filesystem"
	"github.com/forensicanalysis/fsanalyzer/store"
)

func execute(command *cobra.Command, args ...string) ([]byte, error) {
	var out bytes.Buffer
	command.SetOut(&out)
	command.SetErr(io.Discard)
	command.SetArgs(args)
	err := command.Execute()
	return out.Bytes(), err
}

func setup(t *testing.T) (image, storePath string) {
	t.Helper()
	chdir(t, t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	image = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(image, "report.docx"), bytes.Repeat([]byte{'x'}, 1500), 0600))
	require.NoError(t, os.Mkdir(filepath.Join(image, "docs"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(image, "docs", "a.txt"), []byte("hello world\n"), 0600))
	return image, filepath.Join(t.TempDir(), "case.fsanalyzer")
}

func list(t *testing.T, image, storePath string) []byte {
	t.Helper()
	out, err := execute(List(), image, "--store", storePath, "--log-level", "error")
	require.NoError(t, err)
	return out
}

func Test_listCommand(t *testing.T) {
	image, storePath := setup(t)

	out := list(t, image, storePath)
	assert.Equal(t, int64(2), gjson.GetBytes(out, "Directories").Int())
	assert.GreaterOrEqual(t, gjson.GetBytes(out, "Records").Int(), int64(4))

	st, err := store.Open(storePath)
	require.NoError(t, err)
	defer st.Close()

	tests := []struct {
		name       string
		parentPath string
		size       int64
		recordType int64
	}{
		{"report.docx", "root/", 1500, 0},
		{"report.docx-slack", "root/", 2596, 7},
		{"docs", "root/", -1, 0},
		{"a.txt", "root/docs/", 12, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			elements, err := st.Select([]map[string]string{{"name": tt.name}})
			require.NoError(t, err)
			require.Len(t, elements, 1)
			assert.Equal(t, tt.parentPath, gjson.GetBytes(elements[0], "parent_path").String())
			assert.Equal(t, tt.recordType, gjson.GetBytes(elements[0], "record_type").Int())
			if tt.size >= 0 {
				assert.Equal(t, tt.size, gjson.GetBytes(elements[0], "size").Int())
			}
		})
	}

	infos, err := st.Select([]map[string]string{{"type": store.TypeFilesystemInfo}})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "directory", gjson.GetBytes(infos[0], "filesystem_type").String())
}

func Test_listCommandIdempotent(t *testing.T) {
	image, storePath := setup(t)
	list(t, image, storePath)

	st, err := store.Open(storePath)
	require.NoError(t, err)
	first, err := st.All()
	require.NoError(t, err)
	require.NoError(t, st.Close())

	list(t, image, storePath)

	st, err = store.Open(storePath)
	require.NoError(t, err)
	defer st.Close()
	second, err := st.All()
	require.NoError(t, err)
	assert.Len(t, second, len(first))
}

func Test_listCommandStart(t *testing.T) {
	image, _ := setup(t)
	require.NoError(t, os.Mkdir(filepath.Join(image, "docs", "sub"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(image, "docs", "sub", "deep.txt"), []byte("deep\n"), 0600))

	tests := []struct {
		name      string
		recursive string
		want      []string
	}{
		{"non-recursive", "--recursive=false", []string{"a.txt", "sub"}},
		{"recursive", "--recursive=true", []string{"a.txt", "deep.txt", "sub"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storePath := filepath.Join(t.TempDir(), "case.fsanalyzer")
			_, err := execute(List(), image, "/docs", "--store", storePath, "--log-level", "error", tt.recursive)
			require.NoError(t, err)

			st, err := store.Open(storePath)
			require.NoError(t, err)
			defer st.Close()
			elements, err := st.Select([]map[string]string{{"type": store.TypeFile}})
			require.NoError(t, err)

			var names []string
			for _, element := range elements {
				names = append(names, gjson.GetBytes(element, "name").String())
			}
			sort.Strings(names)
			assert.Equal(t, tt.want, names)
		})
	}
}

func Test_elementCommand(t *testing.T) {
	image, storePath := setup(t)
	list(t, image, storePath)

	out, err := execute(Element(), "select", "name=a.txt", "--fields", "name,parent_path", storePath)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"a.txt","parent_path":"root/docs/"}]`, string(out))

	out, err = execute(Element(), "search", `"report.docx"`, "--fields", "name", storePath)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"report.docx"},{"name":"report.docx-slack"}]`, sortedNames(t, out))

	out, err = execute(Element(), "all", storePath)
	require.NoError(t, err)
	all := gjson.ParseBytes(out).Array()
	assert.NotEmpty(t, all)

	id := all[0].Get("id").String()
	out, err = execute(Element(), "get", id, storePath)
	require.NoError(t, err)
	assert.Equal(t, id, gjson.GetBytes(out, "0.id").String())

	_, err = execute(Element(), "select", "name", storePath)
	assert.Error(t, err)

	_, err = execute(Element(), "all", filepath.Join(t.TempDir(), "missing.fsanalyzer"))
	assert.Error(t, err)
}

// sortedNames returns the projected names of a search result in name order.
func sortedNames(t *testing.T, out []byte) string {
	t.Helper()
	names := gjson.GetBytes(out, "#.name").Array()
	require.Len(t, names, 2)
	first, second := names[0].String(), names[1].String()
	if second < first {
		first, second = second, first
	}
	return `[{"name":"` + first + `"},{"name":"` + second + `"}]`
}

func Test_unallocCommand(t *testing.T) {
	image, storePath := setup(t)
	bitmap := filepath.Join(t.TempDir(), "bitmap")
	require.NoError(t, os.WriteFile(bitmap, []byte{0b00001001}, 0600))

	out, err := execute(Unalloc(), image, "--bitmap", bitmap, "--store", storePath, "--log-level", "error")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"Start":1,"End":2},{"Start":4,"End":7}]`, string(out))

	st, err := store.Open(storePath)
	require.NoError(t, err)
	defer st.Close()
	elements, err := st.Select([]map[string]string{{"type": store.TypeUnallocated}})
	require.NoError(t, err)
	assert.Len(t, elements, 2)

	_, err = execute(Unalloc(), image, "--store", storePath, "--log-level", "error")
	assert.True(t, errors.Is(err, filesystem.ErrUnsupported))
}

func Test_infoCommand(t *testing.T) {
	image, _ := setup(t)
	out, err := execute(Info(), image, "--partition-id", "2", "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, "directory", gjson.GetBytes(out, "FilesystemType").String())
	assert.Equal(t, int64(2), gjson.GetBytes(out, "PartitionID").Int())
	assert.Equal(t, int64(4096), gjson.GetBytes(out, "BlockSize").Int())
}

func Test_openSession(t *testing.T) {
	image, _ := setup(t)
	text := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(text, []byte("no database"), 0600))

	tests := []struct {
		name    string
		image   string
		offset  int64
		wantErr error
	}{
		{"directory", image, 0, nil},
		{"offset", image, 512, filesystem.ErrUnsupported},
		{"not an archive", text, 0, filesystem.ErrUnsupported},
		{"missing", filepath.Join(image, "missing"), 0, os.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := openSession(tt.image, tt.offset, "")
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, session.Close())
		})
	}
}
