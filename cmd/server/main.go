package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/bloghub/internal/server"
	"github.com/dmitrijs2005/bloghub/internal/server/config"
)

func main() {

	cfg := config.LoadConfig()

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Fatalf("error initializing app: %v", err)
	}

	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("app stopped with error: %v", err)
	}

}
