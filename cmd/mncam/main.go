package main

import "github.com/mncam/surface/cmd/mncam/cmd"

func main() {
	cmd.Execute()
}
