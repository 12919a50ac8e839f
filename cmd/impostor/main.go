package main

import "github.com/mcoot/impostorgame/internal/cli"

func main() {
	cli.Execute()
}
