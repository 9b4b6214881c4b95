package main

import "gigaproxy/cmd"

func main() {
	cmd.Execute()
}
