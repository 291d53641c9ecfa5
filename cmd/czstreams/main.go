package main

import "czstreams/internal/cli"

func main() {
	cli.Execute()
}
