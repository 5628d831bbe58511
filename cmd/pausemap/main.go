// pausemap fetches GDELT events, OWID health metrics and World Bank
// indicators and reconciles them into weekly summaries.
//
// Usage:
//
//	pausemap sample  [--source=gdelt|owid|worldbank|all]
//	pausemap fetch   [--source=gdelt|owid|worldbank|all]
//	pausemap process
//	pausemap serve
package main

import (
	"fmt"
	"os"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
