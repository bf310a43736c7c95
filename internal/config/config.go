package config

import (
	"log"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type Config struct {
	// HTTP API
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// LLM settings
	LLMProvider      LLMProvider `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string      `env:"OPENAI_BASE_URL"`
	TutorModel       string      `env:"TUTOR_MODEL" envDefault:"gpt-4o-mini"`
	PlannerModel     string      `env:"PLANNER_MODEL" envDefault:"gpt-4o"`
	SummarizerModel  string      `env:"SUMMARIZER_MODEL" envDefault:"gpt-4o-mini"`
	YandexOAuthToken string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string      `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Chat orchestration
	BufferSize           int `env:"BUFFER_SIZE" envDefault:"10"`
	StreamTokenThreshold int `env:"STREAM_TOKEN_THRESHOLD" envDefault:"100"`

	// Users verified out of band, e.g. "alice,tg:123456"
	VerifiedUsers []string `env:"VERIFIED_USERS" envSeparator:","`

	// Storage
	SessionsFilePath string `env:"SESSIONS_FILE_PATH" envDefault:"data/sessions.json"`
	UsersFilePath    string `env:"USERS_FILE_PATH" envDefault:"data/users.json"`
	TurnLogPath      string `env:"TURN_LOG_PATH" envDefault:"logs/turns.jsonl"`

	// Telegram front-end (optional; disabled when the token is empty)
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`

	// Daily reminder
	ReminderEnabled bool   `env:"REMINDER_ENABLED" envDefault:"false"`
	ReminderSpec    string `env:"REMINDER_SPEC" envDefault:"0 9 * * *"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
