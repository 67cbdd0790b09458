package main

import "github.com/mpapenbr/portion-tracker-go/cmd"

func main() {
	cmd.Execute()
}
