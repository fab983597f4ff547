package main

import "github.com/tranvu/ledgersync/internal/cli"

func main() {
	cli.Execute()
}
