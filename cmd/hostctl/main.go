// Command hostctl is the operator CLI of the hosting backend. It talks to the
// admin endpoints of a running server through the authenticating proxy headers.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
