package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "thermostat_away/docs" // swagger spec, served at /swagger
	"thermostat_away/internal/calendar"
	"thermostat_away/internal/device"
	"thermostat_away/internal/handlers"
	"thermostat_away/internal/logger"
	"thermostat_away/internal/notification"
	"thermostat_away/internal/repository"
	"thermostat_away/internal/repository/db"
	"thermostat_away/internal/scheduler"
	"thermostat_away/internal/server"
	"thermostat_away/internal/service"
	"thermostat_away/internal/weather"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// @title           Thermostat Away Scheduler API
// @version         1.0
// @description     Calendar-driven away scheduling for a Nest thermostat with manual overrides and savings tracking.

// @securityDefinitions.apikey BearerAuth
// @in   header
// @name Authorization

func main() {
	// secrets come from the environment; .env is optional for local runs
	_ = godotenv.Load()

	// load config.yml
	if err := loadConfig(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	log := logger.Get(viper.GetString("log.level"))

	// open DB
	sqlDB, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Fatalw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(sqlDB)

	runner := scheduler.NewRunner()
	runner.Start()

	googleClient := calendar.NewGoogleClient(calendar.GoogleConfig{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RefreshToken: os.Getenv("GOOGLE_REFRESH_TOKEN"),
	})
	reconciler := calendar.NewReconciler(googleClient)

	weatherClient := weather.NewClient(os.Getenv("OPENWEATHER_API_KEY"))

	nestClient := device.NewNestClient(device.Config{
		DeviceName:  os.Getenv("NEST_DEVICE_NAME"),
		AccessToken: os.Getenv("NEST_ACCESS_TOKEN"),
	})

	notifier := notification.NewEmailNotifier(notification.SMTPConfig{
		Host:     viper.GetString("smtp.host"),
		Port:     viper.GetInt("smtp.port"),
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     viper.GetString("smtp.from"),
		To:       viper.GetString("smtp.to"),
	})

	engine := service.NewEngine(repos, runner, reconciler, weatherClient, nestClient, notifier, log, service.EngineConfig{
		HomeAddress:     viper.GetString("home.address"),
		Lat:             viper.GetFloat64("home.lat"),
		Lon:             viper.GetFloat64("home.lon"),
		ComfortTempC:    viper.GetFloat64("thermostat.comfort_temp_c"),
		BaselineLoadKWh: viper.GetFloat64("thermostat.baseline_load_kwh"),
		PricePerKWh:     viper.GetFloat64("thermostat.price_per_kwh"),
		Lookahead:       time.Duration(viper.GetInt("calendar.lookahead_hours")) * time.Hour,
	})

	services := service.NewService(
		engine,
		service.NewMonitoringService(repos),
		service.NewEventLogService(repos),
		service.NewAuthService(repos, os.Getenv("JWT_SIGNING_KEY")),
	)
	apiHandler := handlers.NewHandler(services, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// re-arm jobs that were pending when the process last stopped
	if err := engine.Restore(ctx); err != nil {
		log.Fatalw("failed to restore scheduled jobs", "err", err)
	}

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, runner, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "app.db")
		dbPath = "app.db"
	}
	return db.InitDB(dbPath)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, runner *scheduler.Runner, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines and the job runner; mirrored job rows
	// bring pending work back on the next start
	cancel()
	runner.Stop()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
