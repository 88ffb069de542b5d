package main

import "github.com/tanq16/vidgrab/cmd"

func main() {
	cmd.Execute()
}
