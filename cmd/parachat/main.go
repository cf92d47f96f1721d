// cmd/parachat/main.go
package main

import (
	cmd "github.com/mwiater/parachat/internal/cli"
)

// main starts the parachat CLI by delegating to the cobra root command.
func main() {
	cmd.Execute()
}
