package main

import "github.com/GannettDigital/tablediff/cmd/tablediff/cmd"

func main() {
	cmd.Execute()
}
