package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"ldb/db"
)

func newDumpCommand(c *config) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <file>...",
		Short: "print the contents of log, manifest and table files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, name := range args {
				info, err := db.DumpFile(c.fs, name, out)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", name, err)
					failed++
					continue
				}
				if c.verbose {
					spew.Fdump(out, info)
				}
			}
			if failed > 0 {
				return errors.Newf("%d of %d files could not be dumped", failed, len(args))
			}
			return nil
		},
	}
}
