package main

import (
	"context"
	"flag"
	"log"

	"mendbots/server/internal/app"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML server config; empty runs on defaults")
	flag.Parse()

	if err := app.Run(context.Background(), app.Config{ConfigPath: *configPath}); err != nil {
		log.Fatalf("%v", err)
	}
}
