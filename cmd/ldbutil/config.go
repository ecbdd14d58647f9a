package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"ldb"
	"ldb/db"
)

// config holds the settings shared by every subcommand. Values from the
// environment, or a .env file, are the defaults for the matching flags.
type config struct {
	fs       afero.Fs
	dir      string
	paranoid bool
	verbose  bool
}

func loadConfig() *config {
	// A missing .env file is fine.
	_ = godotenv.Load()
	c := &config{
		fs:  afero.NewOsFs(),
		dir: os.Getenv("LDB_DIR"),
	}
	if v, err := strconv.ParseBool(os.Getenv("LDB_PARANOID")); err == nil {
		c.paranoid = v
	}
	return c
}

func (c *config) options() *ldb.Options {
	options := ldb.NewOptions()
	options.FS = c.fs
	options.ParanoidChecks = c.paranoid
	return options
}

func (c *config) openDB() (ldb.DB, error) {
	if c.dir == "" {
		return nil, errNoDB
	}
	return db.Open(c.dir, c.options())
}

func (c *config) bindFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.dir, "db", c.dir, "database directory (default $LDB_DIR)")
	flags.BoolVar(&c.paranoid, "paranoid", c.paranoid, "fail on any corruption (default $LDB_PARANOID)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "print more detail")
}

func newRootCommand(c *config) *cobra.Command {
	root := &cobra.Command{
		Use:           "ldbutil",
		Short:         "inspect and maintain ldb databases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.bindFlags(root.PersistentFlags())
	root.AddCommand(
		newDumpCommand(c),
		newGetCommand(c),
		newScanCommand(c),
		newExportCommand(c),
		newImportCommand(c),
		newCheckCommand(c),
		newBenchCommand(c),
	)
	return root
}
