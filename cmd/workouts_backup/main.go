package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/2beens/fittrack/internal/backup"
	"github.com/2beens/fittrack/internal/config"
	"github.com/2beens/fittrack/internal/db"
	"github.com/2beens/fittrack/internal/logging"
	"github.com/2beens/fittrack/internal/workout"

	log "github.com/sirupsen/logrus"
)

// saved workouts google drive backup cmd

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	credentialsFile := flag.String("gd-creds", "./drive-credentials.json", "google drive service account credentials json")
	readerEmail := flag.String("share-with", "", "email the backup files are shared with (read only)")
	logsPath := flag.String("logs-path", "", "backup logs file path (empty for stdout)")
	reinit := flag.Bool("reinit", false, "reinitialize all again")
	destroy := flag.Bool("destroy", false, "destroy all files (warning!!)")
	flag.Parse()

	logging.Setup(logging.LoggerSetupParams{
		LogFileName: *logsPath,
		LogToStdout: *logsPath == "",
		LogLevel:    "debug",
	})

	log.Println("starting workouts backup ...")

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		log.Fatalf("load config: %s", err)
	}

	if *credentialsFile == "" {
		log.Fatalln("google drive credentials json not specified")
	}
	credentialsFileBytes, err := os.ReadFile(*credentialsFile)
	if err != nil {
		log.Fatalf("unable to read credentials file: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:     cfg.PostgresHost,
		DBPort:     cfg.PostgresPort,
		DBName:     cfg.PostgresDBName,
		DBUser:     os.Getenv("FITTRACK_DB_USER"),
		DBPassword: os.Getenv("FITTRACK_DB_PASS"),
	})
	if err != nil {
		log.Fatalf("new db pool: %s", err)
	}
	defer dbPool.Close()

	s, err := backup.NewGoogleDriveBackupService(ctx, credentialsFileBytes, workout.NewRepo(dbPool), *readerEmail)
	if err != nil {
		log.Fatalf("failed to create google drive backup service: %s", err)
	}

	if *destroy {
		if err := s.DestroyAllFiles(ctx); err != nil {
			log.Fatalf("destroy failed: %s", err)
		}
		log.Println("destroy done!")
		return
	}

	baseTime := time.Now()

	if *reinit {
		log.Println("!! attention: will reinitialize all again...")
		if err := s.Reinit(ctx, baseTime); err != nil {
			log.Fatalf("reinit failed: %s", err)
		}
		log.Println("reinit done")
		return
	}

	if err := s.DoBackup(ctx, baseTime); err != nil {
		log.Fatalf("%+v", err)
	}
	log.Println("backup done")
}
