package app

import (
	"fmt"

	"github.com/bimuz/bimuz-api/api"
	"github.com/bimuz/bimuz-api/config"
	"github.com/bimuz/bimuz-api/database"
	"github.com/bimuz/bimuz-api/router"
	"github.com/bimuz/bimuz-api/services/cron"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether the Postgres is running or not\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		return err
	}

	// Init API
	var server *api.APIServer = api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	// Setup Routes and wire services
	wiring := router.SetupRoutes(app, store)

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if getEnv.CRON_ENABLED != "false" { // Default to enabled
		cronManager = cron.NewCronManager(store.GetDB(), wiring.Groups, wiring.Invoices)
		if err := cronManager.Start(); err != nil {
			print("Warning: Failed to start cron jobs\n")
			print("Error: ", err.Error(), "\n")
			// Don't fail the app, just log the warning
		}
	}

	// Defer stopping cron jobs, draining notifications and closing the DB
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		wiring.Queue.Shutdown()
		store.Close()
	}()

	// Get the PORT & Start the Server
	return server.Run()

}
