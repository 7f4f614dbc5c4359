package main

import (
	"os"

	"remindo/cmd/remindo/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr, nil))
}
