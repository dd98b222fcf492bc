package main

import "codedojo/cmd"

func main() {
	cmd.Execute()
}
