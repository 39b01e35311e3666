package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/magicsketchbook/server/adapters/agent"
	"github.com/magicsketchbook/server/adapters/imagegen"
	"github.com/magicsketchbook/server/adapters/memory"
	"github.com/magicsketchbook/server/adapters/mongo"
	"github.com/magicsketchbook/server/adapters/stt"
	"github.com/magicsketchbook/server/domain/repositories"
	"github.com/magicsketchbook/server/internal/api"
	"github.com/magicsketchbook/server/internal/config"
	"github.com/magicsketchbook/server/internal/websocket"
	"github.com/magicsketchbook/server/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load(logger)

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize adapters
	var (
		agentSvc   repositories.Agent
		images     repositories.ImageGenerator
		recognizer repositories.Recognizer
	)
	if cfg.UseMocks {
		agentSvc = agent.NewMock()
		images = imagegen.NewMock()
		recognizer = stt.NewMockRecognizer(logger)
		logger.Info("Running with mock adapters")
	} else {
		gemini, err := agent.NewGemini(context.Background(), cfg.GeminiAPIKey, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini", zap.Error(err))
		}
		agentSvc = gemini
		images = imagegen.NewGemini(gemini.Client(), logger)
		recognizer = stt.NewGoogleRecognizer(logger)
	}

	var sessions repositories.SessionStore
	if cfg.MongoURI != "" {
		mongoClient, err := mongo.NewClient(cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mongoClient.Close(ctx)
		}()
		sessions = mongo.NewSessionStore(mongoClient.Database)
	} else {
		logger.Info("MONGODB_URI not set; sessions are in-memory only")
		sessions = memory.NewSessionStore()
	}

	// Initialize usecase services
	conversation := usecase.NewConversation(agentSvc, images, sessions, logger)

	// Initialize WebSocket hub
	hub := websocket.NewHub(conversation, recognizer, []byte(cfg.JWTSecret), logger)
	go hub.Run()

	// Initialize API routes
	api.InitRoutes(e, &api.Handlers{
		Conversation: conversation,
		Images:       images,
		JWTSecret:    []byte(cfg.JWTSecret),
		Logger:       logger,
	})
	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c, logger)
	})

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
