package main

import (
	"serverhub/internal/cli/cmd"
)

func main() {
	cmd.Execute()
}
