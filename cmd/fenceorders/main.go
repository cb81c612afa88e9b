package main

import "github.com/marshallshelly/fenceorders/cmd/fenceorders/commands"

func main() {
	commands.Execute()
}
