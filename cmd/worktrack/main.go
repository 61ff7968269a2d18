// Command worktrack is the worktrack CLI.
package main

import "github.com/mesh-intelligence/worktrack/internal/cli"

func main() {
	cli.Execute()
}
