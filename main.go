// The main package for the staticsnap executable.
package main

import (
	"github.com/staticsnap/staticsnap/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
