package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/mindfriend/mindfriend/common/environment"
	"github.com/mindfriend/mindfriend/common/version"
	"github.com/mindfriend/mindfriend/internal/mindfriend/app"
	"github.com/mindfriend/mindfriend/internal/mindfriend/llm"
	"github.com/mindfriend/mindfriend/internal/mindfriend/matrix"
	"github.com/mindfriend/mindfriend/internal/mindfriend/observability"
)

func main() {
	fmt.Printf("MindFriend %s\n\n", version.Info())

	// Optional .env file for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	observability.Setup(
		environment.StringOr("LOG_LEVEL", "info"),
		environment.StringOr("LOG_FORMAT", "text"),
	)

	config, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	bot, err := app.New(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize MindFriend: %v\n", err)
		os.Exit(1)
	}
	defer bot.Stop()

	if err := bot.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running MindFriend: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from environment variables. Missing
// required credentials are the only fatal startup condition.
func loadConfig() (*app.Config, error) {
	homeserver, err := environment.RequiredString("MATRIX_HOMESERVER")
	if err != nil {
		return nil, err
	}
	userID, err := environment.RequiredString("MATRIX_USER_ID")
	if err != nil {
		return nil, err
	}
	accessToken, err := environment.RequiredString("MATRIX_ACCESS_TOKEN")
	if err != nil {
		return nil, err
	}
	apiKey, err := environment.RequiredString("OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}

	return &app.Config{
		DatabasePath: environment.StringOr("DATABASE_PATH", "./mindfriend.db"),
		Matrix: matrix.Config{
			Homeserver:  homeserver,
			UserID:      userID,
			AccessToken: accessToken,
			Rooms:       environment.StringSliceOr("MATRIX_ROOMS", nil),
		},
		OpenAIAPIKey:      apiKey,
		OpenAIBaseURL:     environment.StringOr("OPENAI_BASE_URL", ""),
		OpenAIModel:       environment.StringOr("OPENAI_MODEL", "gpt-4o-mini"),
		GenerationTimeout: environment.DurationOr("LLM_TIMEOUT", llm.DefaultTimeout),
		PersonaPath:       environment.StringOr("PERSONA_PATH", ""),
		MaxSessions:       environment.IntOr("MAX_SESSIONS", 0),
	}, nil
}
