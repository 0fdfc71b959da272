// cmd/iris/main.go
// Entrypoint for the `iris` multi-tool CLI binary. main.go stays tiny and
// delegates to the root command defined in root.go.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
