// Package main is the entrypoint for the farm worker agent.
package main

import (
	"log"

	"github.com/morezero/agent-exchange/internal/agentserver"
)

func main() {
	if err := agentserver.Run(agentserver.KindFarm); err != nil {
		log.Fatalf("farm-agent: %v", err)
	}
}
