package main

import "github.com/vedsharma/apibench/cmd"

func main() {
	cmd.Execute()
}
