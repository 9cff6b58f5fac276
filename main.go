package main

import "github.com/dayuer/cacophony-go/cmd"

func main() {
	cmd.Execute()
}
