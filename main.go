package main

import "github.com/crossvenue/crossarb/cmd"

func main() {
	cmd.Execute()
}
