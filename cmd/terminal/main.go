package main

import "github.com/welloul/CyptoTerminal/internal/cli"

func main() {
	cli.Execute()
}
