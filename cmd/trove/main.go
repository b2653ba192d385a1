package main

import "github.com/trovedb/trove/internal/cli"

func main() {
	cli.Execute()
}
