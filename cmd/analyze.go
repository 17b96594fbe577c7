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
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forensicanalysis/fsanalyzer"
	"github.com/forensicanalysis/fsanalyzer/filesystem"
)

// List returns the command that walks a filesystem into a store.
func List() *cobra.Command {
	listCommand := &cobra.Command{
		Use:   "list <image> [inode|path]",
		Short: "Store the file records of a filesystem",
		Args:  cobra.RangeArgs(1, 2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() // nolint:errcheck

			bitmap, _ := cmd.Flags().GetString("bitmap")
			session, err := openSession(args[0], cfg.Offset, bitmap)
			if err != nil {
				return err
			}
			defer session.Close()

			start := ""
			if len(args) == 2 { //nolint:gomnd
				start = args[1]
			}
			root, err := session.OpenDirectory(start)
			if err != nil {
				return err
			}

			st, err := openStore(cfg.Store, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			walker := fsanalyzer.NewWalker(session.Info(), st)
			cfg.Apply(walker)
			walker.Logger = logger
			stats, err := walker.Walk(root)
			if err != nil {
				return err
			}

			if _, err := st.InsertFilesystemInfo(fsanalyzer.DescribeFilesystem(session, cfg.PartitionID)); err != nil {
				return err
			}
			logger.Info("listed filesystem",
				zap.String("image", args[0]),
				zap.Int("directories", stats.Directories),
				zap.Int("records", stats.Records),
				zap.Int("skipped_subtrees", stats.SkippedSubtrees))
			return printJSON(cmd, stats)
		},
	}
	analysisFlags(listCommand.Flags())
	listCommand.Flags().Bool("recursive", true, "descend into subdirectories")
	listCommand.Flags().Int64("cluster-size", 0, "cluster size for slack calculation (default 4096)")
	listCommand.Flags().Int64("slack-threshold", 0, "minimum size of files checked for slack (default 1024)")
	listCommand.Flags().Int("max-depth", 0, "maximum directory depth (default 512)")
	return listCommand
}

// Unalloc returns the command that stores the unallocated block ranges.
func Unalloc() *cobra.Command {
	unallocCommand := &cobra.Command{
		Use:   "unalloc <image>",
		Short: "Store the unallocated block ranges of a filesystem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() // nolint:errcheck

			bitmap, _ := cmd.Flags().GetString("bitmap")
			session, err := openSession(args[0], cfg.Offset, bitmap)
			if err != nil {
				return err
			}
			defer session.Close()

			if session.BlockCount() == 0 {
				return errors.Wrap(filesystem.ErrUnsupported, "no block allocation information, use --bitmap")
			}
			ranges, err := fsanalyzer.CollectUnallocated(session)
			if err != nil {
				return err
			}

			st, err := openStore(cfg.Store, logger)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.InsertUnallocated(cfg.PartitionID, ranges); err != nil {
				return err
			}
			logger.Info("stored unallocated ranges", zap.String("image", args[0]), zap.Int("ranges", len(ranges)))
			return printJSON(cmd, ranges)
		},
	}
	analysisFlags(unallocCommand.Flags())
	return unallocCommand
}

// Info returns the command that describes a filesystem.
func Info() *cobra.Command {
	infoCommand := &cobra.Command{
		Use:   "info <image>",
		Short: "Print the description of a filesystem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() // nolint:errcheck

			bitmap, _ := cmd.Flags().GetString("bitmap")
			session, err := openSession(args[0], cfg.Offset, bitmap)
			if err != nil {
				return err
			}
			defer session.Close()
			return printJSON(cmd, fsanalyzer.DescribeFilesystem(session, cfg.PartitionID))
		},
	}
	analysisFlags(infoCommand.Flags())
	return infoCommand
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", b)
	return err
}
