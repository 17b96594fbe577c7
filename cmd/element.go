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
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/forensicanalysis/fsanalyzer/store"
)

// Element returns the command that reads elements of a store.
func Element() *cobra.Command {
	elementCommand := &cobra.Command{
		Use:   "element",
		Short: "Read the elements of a store via the commandline",
	}
	elementCommand.AddCommand(getCommand(), selectCommand(), allCommand(), searchCommand())
	return elementCommand
}

func getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id> <store>",
		Short: "Retrieve a single element",
		Args:  cobra.MatchAll(cobra.ExactArgs(2), requireOneStore), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(args[1], func(st *store.Store) ([]store.JSONElement, error) {
				element, err := st.Get(args[0])
				if err != nil {
					return nil, err
				}
				return []store.JSONElement{element}, nil
			}, cmd, nil)
		},
	}
}

func selectCommand() *cobra.Command {
	var fields []string
	selectCommand := &cobra.Command{
		Use:   "select <field=pattern>... <store>",
		Short: "Retrieve the elements matching all conditions",
		Long: "Retrieve the elements matching all conditions. Patterns use the " +
			"LIKE syntax, nested fields are joined by dots, e.g. standard.modified=1600%.",
		Args: cobra.MatchAll(cobra.MinimumNArgs(2), requireOneStore), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			condition := map[string]string{}
			for _, arg := range args[:len(args)-1] {
				parts := strings.SplitN(arg, "=", 2) //nolint:gomnd
				if len(parts) != 2 || parts[0] == "" {
					return errors.Errorf("condition %q is not of the form field=pattern", arg)
				}
				condition[parts[0]] = parts[1]
			}
			return withStore(args[len(args)-1], func(st *store.Store) ([]store.JSONElement, error) {
				return st.Select([]map[string]string{condition})
			}, cmd, fields)
		},
	}
	selectCommand.Flags().StringSliceVar(&fields, "fields", nil, "only print these fields")
	return selectCommand
}

func allCommand() *cobra.Command {
	var fields []string
	allCommand := &cobra.Command{
		Use:   "all <store>",
		Short: "Retrieve all elements",
		Args:  cobra.MatchAll(cobra.ExactArgs(1), requireOneStore),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(args[0], (*store.Store).All, cmd, fields)
		},
	}
	allCommand.Flags().StringSliceVar(&fields, "fields", nil, "only print these fields")
	return allCommand
}

func searchCommand() *cobra.Command {
	var fields []string
	searchCommand := &cobra.Command{
		Use:   "search <query> <store>",
		Short: "Retrieve the elements matching a full text query",
		Long: "Retrieve the elements matching a full text query. Terms containing " +
			"dots or slashes must be quoted, e.g. '\"report.docx\"'.",
		Args: cobra.MatchAll(cobra.ExactArgs(2), requireOneStore), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(args[1], func(st *store.Store) ([]store.JSONElement, error) {
				return st.Search(args[0])
			}, cmd, fields)
		},
	}
	searchCommand.Flags().StringSliceVar(&fields, "fields", nil, "only print these fields")
	return searchCommand
}

func withStore(url string, query func(*store.Store) ([]store.JSONElement, error), cmd *cobra.Command, fields []string) error {
	st, err := store.Open(url)
	if err != nil {
		return err
	}
	defer st.Close()

	elements, err := query(st)
	if err != nil {
		return err
	}
	return printJSON(cmd, project(elements, fields))
}

// project reduces the elements to the given fields. Missing fields are
// omitted.
func project(elements []store.JSONElement, fields []string) []interface{} {
	out := make([]interface{}, 0, len(elements))
	for _, element := range elements {
		if len(fields) == 0 {
			out = append(out, json.RawMessage(element))
			continue
		}
		projected := map[string]interface{}{}
		for _, field := range fields {
			if value := gjson.GetBytes(element, field); value.Exists() {
				projected[field] = value.Value()
			}
		}
		out = append(out, projected)
	}
	return out
}
