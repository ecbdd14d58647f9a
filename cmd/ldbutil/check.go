package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ldb"
)

type checkResult struct {
	entries int
	bytes   int64
}

// check reads every live entry of d with checksum verification on.
func check(d ldb.DB) (*checkResult, error) {
	ro := ldb.NewReadOptions()
	ro.VerifyChecksums = true
	ro.FillCache = false
	iter := d.NewIterator(ro)
	defer iter.Close()
	result := new(checkResult)
	for iter.SeekToFirst(); iter.IsValid(); iter.Next() {
		result.entries++
		result.bytes += int64(len(iter.GetKey()) + len(iter.GetValue()))
	}
	return result, iter.GetStatus()
}

func printLevels(d ldb.DB, w io.Writer) {
	if stats, ok := d.GetProperty("ldb.stats"); ok {
		fmt.Fprint(w, stats)
	}
}

func newCheckCommand(c *config) *cobra.Command {
	var compact bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "verify every table and log of a database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.openDB()
			if err != nil {
				return err
			}
			defer d.Close()
			out := cmd.OutOrStdout()
			if compact {
				if err = d.CompactRange(nil, nil); err != nil {
					return err
				}
			}
			result, err := check(d)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "ok: %d entries, %d bytes\n", result.entries, result.bytes)
			if c.verbose {
				printLevels(d, out)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&compact, "compact", false, "compact the whole key range first")
	return cmd
}
