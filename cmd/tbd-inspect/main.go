// Command tbd-inspect opens a Mach-O image through the macho container and
// reports its header, load commands and library identification.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
