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
	"encoding/binary"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/fatih/structs"
	"github.com/google/uuid"
	"github.com/stoewer/go-strcase"
)

// Element types.
const (
	TypeFile           = "file-info"
	TypeUnallocated    = "unallocated-range"
	TypeFilesystemInfo = "filesystem-info"
)

// JSONElement is a single element of the store.
type JSONElement []byte

// namespace of the deterministic element ids
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/forensicanalysis/fsanalyzer"))

var hashes = map[string]bool{
	"MD5":        true,
	"MD6":        true,
	"RIPEMD-160": true,
	"SHA-1":      true,
	"SHA-224":    true,
	"SHA-256":    true,
	"SHA-384":    true,
	"SHA-512":    true,
	"SHA3-224":   true,
	"SHA3-256":   true,
	"SHA3-384":   true,
	"SHA3-512":   true,
	"SSDEEP":     true,
	"WHIRLPOOL":  true,
}

// elementID derives the id of an element from its type and a key that is
// unique within the type. Equal keys yield equal ids, so storing an element
// again replaces it.
func elementID(elementType, key string) (string, int64) {
	u := uuid.NewSHA1(namespace, []byte(elementType+"/"+key))
	rowid := int64(binary.BigEndian.Uint64(u[:8]) & 0x7fffffffffffffff)
	return elementType + "--" + u.String(), rowid
}

// toElement converts a struct into an element of the given type. Field names
// become snake case and empty fields are dropped.
func toElement(elementType string, v interface{}) map[string]interface{} {
	m := lower(structs.Map(v)).(map[string]interface{})
	m[discriminator] = elementType
	return m
}

func lower(f interface{}) interface{} {
	switch f := f.(type) {
	case []interface{}:
		for i := range f {
			if !isEmptyValue(reflect.ValueOf(f[i])) {
				f[i] = lower(f[i])
			}
		}
		return f
	case map[string]interface{}:
		lf := make(map[string]interface{}, len(f))
		for k, v := range f {
			if isEmptyValue(reflect.ValueOf(v)) {
				continue
			}
			if hashes[k] {
				lf[k] = lower(v)
			} else {
				lf[strcase.SnakeCase(k)] = lower(v)
			}
		}
		return lf
	default:
		return f
	}
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	case reflect.Invalid:
		return true
	}
	return false
}

// flatten returns the leaf fields of a nested element, keys joined by dots.
func flatten(prefix string, nested interface{}, flat map[string]interface{}) {
	value := reflect.ValueOf(nested)
	switch value.Kind() {
	case reflect.Map:
		for _, k := range value.MapKeys() {
			flatten(join(prefix, fmt.Sprint(k.Interface())), value.MapIndex(k).Interface(), flat)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < value.Len(); i++ {
			flatten(join(prefix, strconv.Itoa(i)), value.Index(i).Interface(), flat)
		}
	case reflect.Invalid:
	default:
		flat[prefix] = nested
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// jsonPath converts a dotted field name into a sqlite json path.
func jsonPath(field string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, part := range strings.Split(field, ".") {
		b.WriteString(`."`)
		b.WriteString(part)
		b.WriteString(`"`)
	}
	return b.String()
}
