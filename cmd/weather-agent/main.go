// Package main is the entrypoint for the weather worker agent.
package main

import (
	"log"

	"github.com/morezero/agent-exchange/internal/agentserver"
)

func main() {
	if err := agentserver.Run(agentserver.KindWeather); err != nil {
		log.Fatalf("weather-agent: %v", err)
	}
}
