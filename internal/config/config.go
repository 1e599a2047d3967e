package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"pickup-service/internal/classify"
)

// Config holds all configuration values from environment.
type Config struct {
	AppPort        string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioSSL       bool

	// Local staging directory for artifacts awaiting confirmation
	StagingDir string

	// Detection settings
	ModelWeightsPath  string
	ModelLabelsPath   string
	DetectConcurrency int64 // max detections running at once (default: 4)

	// Disposal category table (defaults to the built-in table)
	CategoryTable classify.Table
}

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory is applied first when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	minioSSL := false
	if sslEnv := os.Getenv("MINIO_SSL"); sslEnv != "" {
		val, err := strconv.ParseBool(sslEnv)
		if err != nil {
			return nil, fmt.Errorf("invalid MINIO_SSL value: %v", err)
		}
		minioSSL = val
	}
	detectConcurrency := int64(4) // default value
	if concEnv := os.Getenv("DETECT_CONCURRENCY"); concEnv != "" {
		val, err := strconv.ParseInt(concEnv, 10, 64)
		if err == nil && val > 0 {
			detectConcurrency = val
		}
	}
	stagingDir := os.Getenv("STAGING_DIR")
	if stagingDir == "" {
		stagingDir = "temp"
	}
	categoryTable := classify.DefaultTable()
	if tablePath := os.Getenv("CATEGORY_TABLE_PATH"); tablePath != "" {
		loaded, err := loadCategoryTable(tablePath)
		if err != nil {
			return nil, fmt.Errorf("could not load category table: %v", err)
		}
		categoryTable = loaded
	}
	cfg := &Config{
		AppPort:        os.Getenv("PICKUP_PORT"),
		DBHost:         os.Getenv("DB_HOST"),
		DBPort:         os.Getenv("DB_PORT"),
		DBUser:         os.Getenv("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBName:         os.Getenv("DB_NAME"),
		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    os.Getenv("MINIO_BUCKET"),
		MinioSSL:       minioSSL,

		StagingDir: stagingDir,

		ModelWeightsPath:  os.Getenv("MODEL_WEIGHTS_PATH"),
		ModelLabelsPath:   os.Getenv("MODEL_LABELS_PATH"),
		DetectConcurrency: detectConcurrency,

		CategoryTable: categoryTable,
	}
	// Basic validation for required fields
	if cfg.DBHost == "" || cfg.DBUser == "" || cfg.DBName == "" {
		return nil, fmt.Errorf("database configuration is incomplete")
	}
	if cfg.MinioEndpoint == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.MinioBucket == "" {
		return nil, fmt.Errorf("minio configuration is incomplete")
	}
	if cfg.ModelWeightsPath == "" || cfg.ModelLabelsPath == "" {
		return nil, fmt.Errorf("detection model configuration is incomplete")
	}
	return cfg, nil
}

// loadCategoryTable reads a label table override from a JSON file.
func loadCategoryTable(path string) (classify.Table, error) {
	var table classify.Table
	data, err := os.ReadFile(path)
	if err != nil {
		return table, err
	}
	if err := json.Unmarshal(data, &table); err != nil {
		return table, err
	}
	return table, nil
}

// ConnectDatabase initializes a GORM database connection to PostgreSQL.
func ConnectDatabase(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return db, nil
}
