// The main package for the ingest executable.
package main

import "github.com/tracklab/ingest/cmd"

func main() {
	cmd.Execute()
}
