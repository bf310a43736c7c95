package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"daytutor/internal/auth"
	"daytutor/internal/chat"
	"daytutor/internal/config"
	"daytutor/internal/httpapi"
	"daytutor/internal/llm"
	"daytutor/internal/memory"
	"daytutor/internal/plan"
	"daytutor/internal/scheduler"
	"daytutor/internal/session"
	"daytutor/internal/storage"
	"daytutor/internal/summarizer"
	"daytutor/internal/telegram"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	var userRepo auth.Repository
	if cfg.UsersFilePath != "" {
		repo, err := auth.NewFileRepository(cfg.UsersFilePath)
		if err != nil {
			log.Printf("failed to init users repo: %v", err)
		} else {
			userRepo = repo
		}
	}
	authSvc, err := auth.NewWithRepo(userRepo, cfg.VerifiedUsers)
	if err != nil {
		log.Fatalf("failed to init auth: %v", err)
	}

	factory := llm.NewFactory(cfg)
	tutorClient, err := factory.CreateClient(string(cfg.LLMProvider), cfg.TutorModel)
	if err != nil {
		log.Fatalf("failed to create tutor client: %v", err)
	}
	plannerClient, err := factory.CreateClient(string(cfg.LLMProvider), cfg.PlannerModel)
	if err != nil {
		log.Fatalf("failed to create planner client: %v", err)
	}
	summarizerClient, err := factory.CreateClient(string(cfg.LLMProvider), cfg.SummarizerModel)
	if err != nil {
		log.Fatalf("failed to create summarizer client: %v", err)
	}

	var rec storage.Recorder
	if cfg.TurnLogPath != "" {
		fr, err := storage.NewFileRecorder(cfg.TurnLogPath)
		if err != nil {
			log.Printf("failed to init turn recorder: %v", err)
		} else {
			rec = fr
		}
	}

	store, err := session.NewFileStore(cfg.SessionsFilePath)
	if err != nil {
		log.Fatalf("failed to init session store: %v", err)
	}
	sessions := session.NewService(store)

	mem := memory.NewManager(cfg.BufferSize, summarizer.New(summarizerClient), rec)
	planner := plan.NewGenerator(plannerClient)
	orch := chat.NewOrchestrator(sessions, authSvc, mem, tutorClient, cfg.StreamTokenThreshold)

	sched := scheduler.New(cfg.ReminderSpec, sessions)

	if cfg.TelegramBotToken != "" {
		bot, err := telegram.New(cfg.TelegramBotToken, authSvc, sessions, planner, orch)
		if err != nil {
			log.Printf("failed to init telegram bot: %v", err)
		} else {
			sched.SetNotifier(bot)
			go bot.Start(context.Background())
			log.Println("🤖 Telegram front-end started")
		}
	}

	if cfg.ReminderEnabled {
		if err := sched.Start(); err != nil {
			log.Printf("failed to start scheduler: %v", err)
		}
		defer sched.Stop()
	}

	api := httpapi.NewServer(cfg.ListenAddr, sessions, planner, orch, rec)
	if err := api.Start(); err != nil {
		log.Fatalf("http server stopped: %v", err)
	}
}
