package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"pwnloop/internal/cli"
	"pwnloop/internal/llm_client"
	"pwnloop/internal/logger"
)

func main() {
	// .env is optional; environment variables win either way.
	_ = godotenv.Load()

	if err := logger.Init("pwnloop.log"); err != nil {
		log.Fatalf("Fatal Error: Could not initialize logger: %v", err)
	}

	if err := llm_client.Init(llm_client.Config{
		Backend:    os.Getenv("LLM_BACKEND"),
		Model:      os.Getenv("LLM_MODEL"),
		OllamaHost: os.Getenv("OLLAMA_HOST"),
	}); err != nil {
		log.Fatalf("Fatal Error: Could not initialize LLM client: %v", err)
	}

	cli.Execute()
}
