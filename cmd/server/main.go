package main

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"exam-system/internal/auth"
	"exam-system/internal/exam"
	"exam-system/internal/extract"
	"exam-system/internal/generation"
	"exam-system/internal/lifecycle"
	"exam-system/internal/models"
	"exam-system/pkg/cache"
	"exam-system/pkg/database"
	"exam-system/pkg/websocket"

	"github.com/gorilla/mux"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	// Initialize database
	dbConfig := &database.Config{
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   os.Getenv("DB_NAME"),
	}

	db, err := database.NewPostgresDB(dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	err = db.AutoMigrate(
		&models.User{},
		&models.Test{},
		&models.MCQ{},
		&models.TestAssignment{},
		&models.TestResult{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize Redis cache
	redisCache := cache.NewRedisCache(os.Getenv("REDIS_ADDR"))

	// Initialize WebSocket hub
	jwtSecret := os.Getenv("JWT_SECRET")
	wsHub := websocket.NewHub(jwtSecret)
	go wsHub.Run()

	// Initialize repositories
	authRepo := auth.NewRepository(db)
	examRepo := exam.NewRepository(db)

	// Initialize generation pipeline
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	generator := generation.NewGroqGenerator(os.Getenv("GROQ_API_KEY"))
	sampler := generation.NewSampler(generator, generation.DefaultRetryPolicy(), rng)
	extractor := extract.NewFileExtractor()

	// Initialize services
	authService := auth.NewService(authRepo, jwtSecret)
	examService := exam.NewService(examRepo, redisCache, wsHub, extractor, generator, sampler)

	// Initialize handlers
	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	authHandler := auth.NewHandler(authService)
	examHandler := exam.NewHandler(examService, uploadDir)

	// Background sweeper keeps scheduled tests in sync with the clock
	sweeperCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	sweeper := lifecycle.NewSweeper(examRepo, wsHub, time.Minute)
	go sweeper.Run(sweeperCtx)

	// Setup router
	router := mux.NewRouter()

	// CORS middleware configuration
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"}, // Frontend URL
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	handler := corsMiddleware.Handler(router)

	// Auth routes - no JWT required
	router.HandleFunc("/api/auth/signup", authHandler.Signup).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	// Exam routes - JWT required
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(auth.JWTMiddleware(jwtSecret))

	apiRouter.HandleFunc("/upload-document", examHandler.UploadDocument).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/generate-mcqs", examHandler.GenerateMCQs).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/review-mcqs", examHandler.ReviewMCQs).Methods("GET")
	apiRouter.HandleFunc("/update-mcq", examHandler.UpdateMCQ).Methods("PUT", "OPTIONS")
	apiRouter.HandleFunc("/delete-mcq", examHandler.DeleteMCQ).Methods("DELETE", "OPTIONS")
	apiRouter.HandleFunc("/regenerate-mcq", examHandler.RegenerateMCQ).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/assign-test", examHandler.AssignTest).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/manage-test", examHandler.ManageTest).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/delete-test", examHandler.DeleteTest).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/user-tests", examHandler.UserTests).Methods("GET")
	apiRouter.HandleFunc("/save-test-result", examHandler.SaveTestResult).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/student-results", examHandler.StudentResults).Methods("GET")
	apiRouter.HandleFunc("/export-results", examHandler.ExportResults).Methods("GET")
	apiRouter.HandleFunc("/students", examHandler.ListStudents).Methods("GET")
	apiRouter.HandleFunc("/students", examHandler.UpdateStudent).Methods("PUT", "OPTIONS")
	apiRouter.HandleFunc("/students", examHandler.DeleteStudent).Methods("DELETE", "OPTIONS")

	// WebSocket endpoint
	router.HandleFunc("/ws", wsHub.HandleWebSocket)

	// Setup server with CORS handler
	srv := &http.Server{
		Addr:         ":8080",
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port 8080")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown setup
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c

	stopSweeper()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server shutdown gracefully")
}
