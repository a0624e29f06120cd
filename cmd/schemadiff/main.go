package main

import "github.com/kvardanyan/schemadiff/cmd/schemadiff/commands"

func main() {
	commands.Execute()
}
