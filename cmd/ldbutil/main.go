// Command ldbutil inspects and maintains ldb databases.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand(loadConfig()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
