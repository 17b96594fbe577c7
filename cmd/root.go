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

// Package cmd implements the fsanalyzer command line.
package cmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/forensicanalysis/fsanalyzer/config"
	"github.com/forensicanalysis/fsanalyzer/store"
)

// analysisFlags adds the flags of the commands that read an image. Their
// defaults are left empty so configuration files and the environment apply.
func analysisFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "configuration file (default fsanalyzer.yaml)")
	flags.String("store", "", "result store")
	flags.Int("partition-id", 0, "partition id recorded with every element")
	flags.Int64("offset", 0, "byte offset of the partition in the image")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("bitmap", "", "block allocation bitmap, one bit per block")
}

func loadConfig(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openStore opens the store or creates it if it does not exist.
func openStore(url string, logger *zap.Logger) (*store.Store, error) {
	if _, err := os.Stat(url); err == nil {
		return store.Open(url, store.WithLogger(logger))
	}
	return store.New(url, store.WithLogger(logger))
}

func requireOneStore(_ *cobra.Command, args []string) error {
	if len(args) < 1 {
		return errors.New("requires a store")
	}
	url := args[len(args)-1]
	if _, err := os.Stat(url); os.IsNotExist(err) {
		return errors.Wrap(os.ErrNotExist, url)
	}
	return nil
}
