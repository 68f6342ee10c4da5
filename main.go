package main

import "github.com/agentfund/baseline/internal/cli"

func main() {
	cli.Execute()
}
