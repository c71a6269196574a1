package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/siherrmann/askpdf"
	"github.com/siherrmann/askpdf/core/notify"
	"github.com/siherrmann/askpdf/helper"
	"github.com/siherrmann/askpdf/model"
)

var questions = []string{
	"What is the title of the document?",
	"Who is the author?",
	"What is the main conclusion?",
}

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: %s <file.pdf>...", os.Args[0])
	}

	// Configuration from environment and .env
	config, err := helper.NewAgentConfiguration()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	docs, err := model.NewDocumentsFromFiles(os.Args[1:]...)
	if err != nil {
		log.Fatalf("Failed to read documents: %v", err)
	}

	agent, err := askpdf.NewAgent(config, docs, nil)
	if err != nil {
		log.Fatalf("Failed to create agent: %v", err)
	}

	// Log the payload instead of posting it to Slack
	agent.SetNotifier(notify.NewLogNotifier(helper.NewLogger(os.Stderr, slog.LevelInfo)))

	report, err := agent.ProcessAndNotify(context.Background(), questions, func(p model.Progress) {
		fmt.Println(p.Message)
	})
	if err != nil {
		log.Fatalf("Failed to process documents: %v", err)
	}

	fmt.Printf("\nAnswered %d questions:\n", len(report.Questions))
	for i, result := range report.Questions {
		fmt.Printf("\n--- Question %d ---\n", i+1)
		fmt.Printf("Question: %s\n", result.Question)
		fmt.Printf("Answer: %s\n", result.Answer)
	}
	for _, docErr := range report.DocumentErrors {
		fmt.Printf("\nSkipped %s: %s\n", docErr.Title, docErr.Error)
	}

	fmt.Println("\nBasic example completed successfully!")
}
