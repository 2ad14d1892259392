package main

import (
	"github.com/darianrosebrook/agent-agency/cmd/recvault/cmd"
)

func main() {
	cmd.Execute()
}
