package main

import "github.com/aaronromeo/sortpat/internal/cli"

func main() {
	cli.Execute()
}
