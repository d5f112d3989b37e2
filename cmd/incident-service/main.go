package main

import (
	"log"

	"github.com/incidentnow/incident-service/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
