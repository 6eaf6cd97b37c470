// Command seed-knowledge loads a business knowledge file into Redis so the
// scheduling agent can quote it during natural-language booking.
//
// Usage:
//
//	REDIS_ADDR=localhost:6379 go run ./scripts/seed-knowledge testdata/sample-knowledge.json
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/voice-scheduler/internal/app/bootstrap"
	appconfig "github.com/wolfman30/voice-scheduler/internal/config"
	"github.com/wolfman30/voice-scheduler/internal/knowledge"
	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

type knowledgeFile struct {
	BusinessID   string     `json:"business_id"`
	BusinessName string     `json:"business_name"`
	Documents    []document `json:"documents"`
}

type document struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/seed-knowledge <knowledge-file.json>")
		os.Exit(1)
	}
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}
	var kf knowledgeFile
	if err := json.Unmarshal(data, &kf); err != nil {
		fmt.Printf("Error parsing JSON: %v\n", err)
		os.Exit(1)
	}
	if strings.TrimSpace(kf.BusinessID) == "" {
		fmt.Println("Error: business_id is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if client == nil {
		fmt.Println("Error: Redis is not reachable; set REDIS_ADDR")
		os.Exit(1)
	}
	defer client.Close()

	// Documents are stored as "Title\n\nContent".
	docs := make([]string, 0, len(kf.Documents))
	for _, d := range kf.Documents {
		docs = append(docs, fmt.Sprintf("%s\n\n%s", d.Title, d.Content))
	}

	store := knowledge.NewStore(client, cfg.KnowledgeMaxChars)
	if err := store.Replace(ctx, kf.BusinessID, docs...); err != nil {
		fmt.Printf("Error storing knowledge: %v\n", err)
		os.Exit(1)
	}
	prompt, err := store.ContextPrompt(ctx, kf.BusinessID)
	if err != nil {
		fmt.Printf("Error reading back knowledge: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Seeded %d documents for %s (%s); agent context is %d characters\n",
		len(docs), kf.BusinessName, kf.BusinessID, len(prompt))
}
