package main

import "github.com/mrdg/groove/cmd"

func main() {
	cmd.Execute()
}
