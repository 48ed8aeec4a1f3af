// Package main provides keytool, the operator CLI for envkeep key material
// and development tokens.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
