package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizmaster-service/internal/app"
	"quizmaster-service/internal/config"
	"quizmaster-service/internal/domain"
	"quizmaster-service/internal/infra/memory"
	pgstore "quizmaster-service/internal/infra/postgres"
	redisinfra "quizmaster-service/internal/infra/redis"
	transport "quizmaster-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var source app.QuizSource = memory.NewStaticQuizSource(sampleQuizzes())
	var results app.ResultStore = memory.NewResultStore()
	if pool != nil {
		source = pgstore.NewQuizSource(pool)
		results = pgstore.NewResultStore(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)
	if redisClient != nil {
		source = redisinfra.NewQuizCache(redisClient, source, quizTTL)
		results = redisinfra.NewCompletionCache(redisClient, results, redisTTL)
	} else {
		source = memory.NewQuizCache(source, quizTTL)
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	timing := app.Timing{
		QuestionSeconds: cfg.Quiz.QuestionSeconds,
		TotalSeconds:    cfg.Quiz.TotalSeconds,
	}
	service := app.NewQuizService(source, results, sessions, timing)
	wsHandler := transport.NewWSHandler(service)
	apiHandler := transport.NewAPIHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/leaderboard", apiHandler.Leaderboard)
	mux.HandleFunc("/history", apiHandler.History)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides minimal quiz content for running without Postgres.
func sampleQuizzes() []domain.Quiz {
	return []domain.Quiz{
		{
			ID:     "quiz-1",
			Title:  "General Knowledge",
			Active: true,
			Questions: []domain.Question{
				{
					ID:           "q1",
					Text:         "What is the capital of France?",
					QuestionType: domain.QuestionTypeMultipleChoice,
					Answers: []domain.Answer{
						{ID: "a1", Text: "Paris"},
						{ID: "a2", Text: "Rome"},
						{ID: "a3", Text: "Madrid"},
					},
					CorrectAnswerID: "a1",
				},
				{
					ID:           "q2",
					Text:         "Which planet is known as the Red Planet?",
					QuestionType: domain.QuestionTypeText,
					Answers: []domain.Answer{
						{ID: "a1", Text: "Mars"},
					},
					CorrectAnswerID: "a1",
					Explanation:     "Iron oxide on its surface gives Mars its color.",
				},
			},
		},
	}
}
