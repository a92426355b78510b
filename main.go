package main

import "kinema/cmd"

func main() {
	cmd.Execute()
}
