package main

import "github.com/mcoot/numberhunt/internal/cli"

func main() {
	cli.Execute()
}
