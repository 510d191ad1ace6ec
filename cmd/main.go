package main

import (
	"log"
	_ "time/tzdata"

	_ "gw-transfer-batch/docs"
	"gw-transfer-batch/internal/app"
)

// @title           Transfer Batch API
// @version         1.0
// @description     Operator trigger for the daily bank-transfer batch and its run journal.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app, err := app.NewApp()
	if err != nil {
		log.Fatalf("failed to create application: %v", err)
	}

	app.BuildBatchLayer()
	if err := app.BuildTriggerLayer(); err != nil {
		log.Fatalf("failed to build trigger layer: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
