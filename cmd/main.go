package main

import (
	"log"
	"time"

	"pickup-service/internal/classify"
	"pickup-service/internal/config"
	"pickup-service/internal/detect"
	"pickup-service/internal/detect/yolo"
	"pickup-service/internal/handlers"
	"pickup-service/internal/metrics"
	"pickup-service/internal/models"
	"pickup-service/internal/repository"
	"pickup-service/internal/services"
	"pickup-service/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

func main() {
	cfg := InitConfig()
	db := ConnectDatabase(cfg)
	MigrateDatabase(db)

	minioClient, err := storage.NewMinioClient(cfg)
	if err != nil {
		log.Fatalf("MinIO client initialization failed: %v", err)
	}
	durable := storage.NewMinioStore(minioClient, cfg.MinioBucket)

	staging, err := storage.NewStagingStore(cfg.StagingDir, durable)
	if err != nil {
		log.Fatalf("Staging store initialization failed: %v", err)
	}

	m := metrics.NewMetrics()
	detector := InitDetector(cfg, m)

	pickupRepo := repository.NewPickupRepository(db)
	pickupService := services.NewPickupService(pickupRepo, staging, detector)
	imageCache := services.NewImageCache(durable, m, 10*time.Minute)

	app := fiber.New(fiber.Config{
		BodyLimit: 32 * 1024 * 1024,
	})
	app.Use(cors.New())

	// Register Prometheus metrics endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Set up routes for the pickup workflow
	h := handlers.NewPickupHandler(pickupService, imageCache, m)
	p := handlers.NewPointsHandler(pickupService)
	app.Post("/analyze-image", h.AnalyzeImage)
	app.Post("/confirm", h.Confirm)
	app.Post("/upload", h.Upload)
	app.Get("/temp_image/:filename", h.TempImage)
	app.Get("/image/:filename", h.Image)
	app.Get("/user_points/:user_id", p.UserPoints)
	app.Get("/pickups/nearby", p.NearbyPickups)

	app.Get("/swagger/*", swagger.HandlerDefault)

	// Add Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	routes := app.GetRoutes()
	log.Println("Registered routes:")
	for _, r := range routes {
		log.Printf("  %s %s\n", r.Method, r.Path)
	}

	// Start the Fiber server
	port := cfg.AppPort
	if port == "" {
		port = "8080"
		log.Printf("Defaulting to port %s", port)
	}
	log.Printf("Server listening on port %s", port)
	log.Fatal(app.Listen(":" + port))
}

func InitConfig() *config.Config {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	return cfg
}

func ConnectDatabase(cfg *config.Config) *gorm.DB {
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	return db
}

func MigrateDatabase(db *gorm.DB) {
	err := db.AutoMigrate(&models.PickupSpot{})
	if err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}
}

// InitDetector loads the detection model and wraps it with the concurrency
// cap and metrics.
func InitDetector(cfg *config.Config, m *metrics.Metrics) detect.Detector {
	labels, err := yolo.LoadLabels(cfg.ModelLabelsPath)
	if err != nil {
		log.Fatalf("Model labels loading failed: %v", err)
	}
	net, err := yolo.NewNet(cfg.ModelWeightsPath, len(labels))
	if err != nil {
		log.Fatalf("Detection model loading failed: %v", err)
	}
	classifier := classify.NewClassifier(cfg.CategoryTable)
	detector := yolo.NewDetector(net, labels, classifier)
	return detect.NewInstrumented(detect.NewLimited(detector, cfg.DetectConcurrency), m)
}
