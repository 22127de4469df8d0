package main

import "github.com/figprep/figprep/cmd/figprep/cmd"

func main() {
	cmd.Execute()
}
