package main

import (
	"log"
	"os"

	"leboncoin-parser-service/internal"
	"leboncoin-parser-service/internal/configs"
)

func main() {
	appConfig, err := configs.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	application, err := internal.NewApp(appConfig)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("Application run failed: %v", err)
	}
}
