// Package main provides the scenereel command-line tool.
package main

import "github.com/maauso/scenereel/internal/cli"

func main() {
	cli.Main()
}
