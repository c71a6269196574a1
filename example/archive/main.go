package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/siherrmann/askpdf"
	"github.com/siherrmann/askpdf/core/notify"
	"github.com/siherrmann/askpdf/database"
	"github.com/siherrmann/askpdf/helper"
	"github.com/siherrmann/askpdf/model"
	loadSql "github.com/siherrmann/askpdf/sql"
)

func main() {
	if len(os.Args) < 3 {
		log.Fatalf("Usage: %s <question> <file.pdf>...", os.Args[0])
	}

	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	logger := helper.NewLogger(os.Stdout, slog.LevelInfo)
	db := helper.NewDatabase("askpdf", dbConfig, logger)
	defer db.Close()

	if err := loadSql.Init(db.Instance); err != nil {
		log.Fatalf("Failed to initialize database extensions: %v", err)
	}

	reports, err := database.NewReportsDBHandler(db, false)
	if err != nil {
		log.Fatalf("Failed to create reports handler: %v", err)
	}

	config, err := helper.NewAgentConfiguration()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	docs, err := model.NewDocumentsFromFiles(os.Args[2:]...)
	if err != nil {
		log.Fatalf("Failed to read documents: %v", err)
	}

	agent, err := askpdf.NewAgent(config, docs, logger)
	if err != nil {
		log.Fatalf("Failed to create agent: %v", err)
	}
	agent.SetArchive(reports)
	agent.SetNotifier(notify.NewLogNotifier(logger))

	report, err := agent.ProcessAndNotify(context.Background(), []string{os.Args[1]}, nil)
	if err != nil {
		log.Fatalf("Failed to process documents: %v", err)
	}
	fmt.Printf("Archived report %s with ID %d\n", report.RID, report.ID)

	// Read the archive back
	archived, err := reports.SelectAllReports(nil, 10)
	if err != nil {
		log.Fatalf("Failed to select reports: %v", err)
	}

	fmt.Printf("\nFound %d archived reports:\n", len(archived))
	for _, r := range archived {
		fmt.Printf("\n--- Report %s ---\n", r.RID)
		fmt.Printf("Channel: %s\n", r.Channel)
		fmt.Printf("Created: %s\n", r.CreatedAt.Format("2006-01-02 15:04:05"))
		for _, result := range r.Questions {
			fmt.Printf("%s -> %s\n", result.Question, result.Answer)
		}
	}

	fmt.Println("\nArchive example completed successfully!")
}
