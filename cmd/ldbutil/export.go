package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/spf13/cobra"

	"ldb"
	"ldb/db"
	"ldb/util"
)

const importBatchSize = 1000

// exportEntries writes every live entry of d to w as a snappy framed stream
// of length-prefixed key and value pairs.
func exportEntries(d ldb.DB, w io.Writer) (int, error) {
	sw := snappy.NewBufferedWriter(w)
	iter := d.NewIterator(nil)
	defer iter.Close()
	n := 0
	var record []byte
	for iter.SeekToFirst(); iter.IsValid(); iter.Next() {
		record = record[:0]
		util.PutLengthPrefixedSlice(&record, iter.GetKey())
		util.PutLengthPrefixedSlice(&record, iter.GetValue())
		if _, err := sw.Write(record); err != nil {
			return n, err
		}
		n++
	}
	if err := iter.GetStatus(); err != nil {
		return n, err
	}
	return n, sw.Close()
}

func readSlice(r *bufio.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	_, err = io.ReadFull(r, b)
	return b, err
}

// importEntries reads a stream written by exportEntries and puts every
// entry into d.
func importEntries(d ldb.DB, r io.Reader) (int, error) {
	br := bufio.NewReader(snappy.NewReader(r))
	batch := ldb.NewWriteBatch()
	n := 0
	for {
		key, err := readSlice(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, err
		}
		value, err := readSlice(br)
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return n, err
		}
		batch.Put(key, value)
		n++
		if batch.Count() >= importBatchSize {
			if err = d.Write(nil, batch); err != nil {
				return n, err
			}
			batch.Clear()
		}
	}
	if batch.Count() > 0 {
		return n, d.Write(nil, batch)
	}
	return n, nil
}

func newExportCommand(c *config) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "write every live entry to a snappy compressed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.openDB()
			if err != nil {
				return err
			}
			defer d.Close()
			f, err := c.fs.Create(args[0])
			if err != nil {
				return err
			}
			n, err := exportEntries(d, f)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d entries to %s\n", n, args[0])
			return nil
		},
	}
}

func newImportCommand(c *config) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "load the entries of an exported file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.dir == "" {
				return errNoDB
			}
			options := c.options()
			options.CreateIfMissing = true
			d, err := db.Open(c.dir, options)
			if err != nil {
				return err
			}
			defer d.Close()
			f, err := c.fs.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			n, err := importEntries(d, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d entries from %s\n", n, args[0])
			return nil
		},
	}
}
