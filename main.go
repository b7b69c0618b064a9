package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"training-service/config"
	"training-service/internal/client"
	"training-service/internal/constants"
	"training-service/internal/handlers"
	"training-service/internal/middleware"
	"training-service/internal/repository"
	"training-service/internal/service"
	"training-service/internal/session"
	ws "training-service/internal/websocket"
	"training-service/pkg/cache"
	"training-service/pkg/database"
	"training-service/pkg/messaging"
	"training-service/pkg/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	log.Println("Configuration loaded")

	pgClient, err := database.NewPostgresClient(&cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	log.Println("Connected to PostgreSQL")
	defer pgClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := pgClient.InitSchema(ctx); err != nil {
		log.Printf("Warning: Failed to initialize PostgreSQL schema: %v", err)
	} else {
		log.Println("PostgreSQL schema initialized")
	}
	cancel()

	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v", err)
		redisClient = nil
	} else {
		log.Println("Connected to Redis")
		defer redisClient.Close()
	}

	rabbitClient, err := messaging.NewRabbitMQClient(&cfg.RabbitMQ)
	if err != nil {
		log.Printf("Warning: Failed to connect to RabbitMQ: %v", err)
		rabbitClient = nil
	} else {
		log.Println("Connected to RabbitMQ")
		defer rabbitClient.Close()

		for _, queue := range []string{constants.QueueSessionCompleted, constants.QueueBadgeEarned} {
			if _, err := rabbitClient.DeclareQueue(queue); err != nil {
				log.Printf("Warning: Failed to declare queue %s: %v", queue, err)
			}
		}
	}

	s3Client, err := storage.NewS3Client(&cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to connect to object storage: %v", err)
	}
	log.Println("Connected to object storage")

	bucketCtx, bucketCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := s3Client.EnsureBucket(bucketCtx); err != nil {
		log.Printf("Warning: Failed to ensure audio bucket: %v", err)
	}
	bucketCancel()

	db := pgClient.GetDB()
	sessionRepo := repository.NewSessionRepository(db)
	scenarioRepo := repository.NewScenarioRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)

	llmClient := client.NewLLMClient(cfg.AI)
	speechClient := client.NewSpeechClient(cfg.AI)

	var publisher service.EventPublisher
	if rabbitClient != nil {
		publisher = rabbitClient
	}

	trainingService := service.NewTrainingService(
		sessionRepo,
		scenarioRepo,
		quizRepo,
		statsRepo,
		badgeRepo,
		llmClient,
		speechClient,
		s3Client,
		publisher,
		session.NewTickerClock(),
	)

	hub := ws.NewHub(trainingService)
	go hub.Run()
	log.Println("WebSocket hub started")

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "training-service",
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		if pgClient == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})

	wsHandler := handlers.NewWebSocketHandler(hub)
	router.GET("/ws", middleware.JWTAuth(cfg.JWT.Secret), wsHandler.HandleWebSocket)

	profileHandler := handlers.NewProfileHandler(statsRepo, badgeRepo, redisClient)
	adminHandler := handlers.NewAdminHandler(scenarioRepo, quizRepo, badgeRepo)

	api := router.Group("/api/v1", middleware.JWTAuth(cfg.JWT.Secret))
	{
		api.GET("/profile", profileHandler.GetProfile)
		api.GET("/leaderboard", profileHandler.GetLeaderboard)
		api.GET("/badges", profileHandler.ListBadges)

		admin := api.Group("/admin", middleware.AdminOnly())
		{
			admin.GET("/scenarios", adminHandler.ListScenarios)
			admin.POST("/scenarios", adminHandler.CreateScenario)
			admin.PUT("/scenarios/:id", adminHandler.UpdateScenario)
			admin.DELETE("/scenarios/:id", adminHandler.DeleteScenario)

			admin.GET("/quiz-sets", adminHandler.ListQuizSets)
			admin.POST("/quiz-sets", adminHandler.CreateQuizSet)
			admin.PUT("/quiz-sets/:id", adminHandler.UpdateQuizSet)
			admin.DELETE("/quiz-sets/:id", adminHandler.DeleteQuizSet)
			admin.GET("/quiz-sets/:id/questions", adminHandler.ListQuestions)
			admin.POST("/quiz-sets/:id/questions", adminHandler.CreateQuestion)
			admin.DELETE("/quiz-sets/:id/questions/:questionId", adminHandler.DeleteQuestion)

			admin.POST("/badges", adminHandler.CreateBadge)
			admin.PUT("/badges/:id", adminHandler.UpdateBadge)
			admin.DELETE("/badges/:id", adminHandler.DeleteBadge)
		}
	}

	httpAddr := ":" + cfg.Server.HTTPPort
	log.Printf("Training Service HTTP server starting on port %s...", cfg.Server.HTTPPort)

	go func() {
		if err := router.Run(httpAddr); err != nil {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Training service stopped")
}
