package main

import (
	"os"

	"github.com/kebairia/deployctl/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
