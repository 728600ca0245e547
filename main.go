package main

import "github.com/qobs-build/nubs/cmd"

func main() {
	cmd.Execute()
}
