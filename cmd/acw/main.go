package main

import "github.com/dennisdiepolder/monti/acw/internal/cli"

func main() {
	cli.Execute()
}
