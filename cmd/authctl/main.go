// Command authctl is the operator tool for the auth core: password hashing,
// token inspection, a demo HTTP server and a login load generator.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
