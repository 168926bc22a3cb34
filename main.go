package main

import "github.com/brk3/flux/cmd"

func main() {
	cmd.Execute()
}
