package main

import "github.com/OpenTraceLab/pcibx/cmd/pcibx/cmd"

func main() {
	cmd.Execute()
}
