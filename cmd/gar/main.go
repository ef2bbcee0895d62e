// Command gar is the CLI entrypoint; all behavior lives in package cli.
package main

import "github.com/javanhut/gar/cli"

func main() {
	cli.Execute()
}
