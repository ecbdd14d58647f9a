package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"ldb"
	"ldb/util"
)

var errNoDB = errors.New("no database directory: pass --db or set LDB_DIR")

func newGetCommand(c *config) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "print the value stored under key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.openDB()
			if err != nil {
				return err
			}
			defer d.Close()
			value, err := d.Get(nil, []byte(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), util.EscapeString(value))
			return nil
		},
	}
}

type scanOptions struct {
	start   string
	limit   string
	reverse bool
	max     int
}

// scan writes the live entries in [start, limit) to w and returns how many
// it wrote. An empty limit is unbounded.
func scan(d ldb.DB, so *scanOptions, w io.Writer) (int, error) {
	iter := d.NewIterator(nil)
	defer iter.Close()
	inRange := func() bool {
		if !iter.IsValid() {
			return false
		}
		key := iter.GetKey()
		if so.limit != "" && bytes.Compare(key, []byte(so.limit)) >= 0 {
			return false
		}
		return bytes.Compare(key, []byte(so.start)) >= 0
	}

	n := 0
	if so.reverse {
		if so.limit != "" {
			iter.Seek([]byte(so.limit))
			if iter.IsValid() {
				iter.Prev()
			} else {
				iter.SeekToLast()
			}
		} else {
			iter.SeekToLast()
		}
	} else {
		iter.Seek([]byte(so.start))
	}
	for ; inRange() && (so.max <= 0 || n < so.max); n++ {
		fmt.Fprintf(w, "'%s' => '%s'\n", util.EscapeString(iter.GetKey()), util.EscapeString(iter.GetValue()))
		if so.reverse {
			iter.Prev()
		} else {
			iter.Next()
		}
	}
	return n, iter.GetStatus()
}

func newScanCommand(c *config) *cobra.Command {
	so := new(scanOptions)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "print the live entries of a key range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.openDB()
			if err != nil {
				return err
			}
			defer d.Close()
			n, err := scan(d, so, cmd.OutOrStdout())
			if c.verbose {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d entries\n", n)
			}
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&so.start, "start", "", "first key to print")
	flags.StringVar(&so.limit, "limit", "", "stop before this key")
	flags.BoolVar(&so.reverse, "reverse", false, "print in descending key order")
	flags.IntVar(&so.max, "max", 0, "print at most this many entries")
	return cmd
}
