package main

import "github.com/depintel/depintel/cmd"

func main() {
	cmd.Execute()
}
