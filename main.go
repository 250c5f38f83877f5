package main

import "github.com/kozaktomas/sketch-match/cmd"

func main() {
	cmd.Execute()
}
