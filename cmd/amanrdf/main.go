// Package main provides the entry point for the amanrdf CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/amanrdf/cmd/amanrdf/cmd"
	amerrors "github.com/Aman-CERP/amanrdf/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprint(os.Stderr, amerrors.FormatForCLI(err))
		os.Exit(1)
	}
}
