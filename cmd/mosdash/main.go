package main

import "github.com/kahosan/mosdash/internal/cmd"

func main() {
	cmd.Execute()
}
