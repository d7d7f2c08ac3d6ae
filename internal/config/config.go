package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/photogate/backend/internal/analysis"
)

type Config struct {
	// Server
	Port   string
	Env    string
	AppURL string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Storage
	StorageType       string // "local" | "s3"
	LocalStoragePath  string
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool
	S3Bucket          string
	SignedURLTTL      time.Duration

	// Upload limits
	UploadMaxFileSize int64
	UploadMaxFiles    int

	// Pipeline
	PipelineWorkers      int
	PipelineQueue        int
	PipelineDrainTimeout time.Duration

	// Derivative
	DerivativeMaxDim      int
	DerivativeJPEGQuality int

	// Analyzer thresholds
	Analyzer analysis.Tunables

	// Security
	RateLimitRequests     int
	RateLimitDuration     time.Duration
	UploadRateLimitPerDay int

	// CORS
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// IsDevelopment reports whether stack traces may be included in error bodies.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func New() *Config {
	return &Config{
		// Server
		Port:   getEnv("PORT", "8080"),
		Env:    getEnv("ENV", "development"),
		AppURL: getEnv("APP_URL", "http://localhost:8080"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "photogate"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "photogate_db"),
		DBSSLMode:  getEnv("DB_SSL_MODE", "disable"),

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// Storage
		StorageType:       getEnv("STORAGE_TYPE", "local"),
		LocalStoragePath:  getEnv("LOCAL_STORAGE_PATH", "./uploads"),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3UsePathStyle:    getEnv("S3_USE_PATH_STYLE", "true") == "true",
		S3Bucket:          getEnv("S3_BUCKET", "photogate-images"),
		SignedURLTTL:      getEnvAsDuration("SIGNED_URL_TTL", "1h"),

		// Upload limits
		UploadMaxFileSize: getEnvAsInt64("UPLOAD_MAX_FILE_SIZE", 10*1024*1024),
		UploadMaxFiles:    getEnvAsInt("UPLOAD_MAX_FILES", 10),

		// Pipeline
		PipelineWorkers:      getEnvAsInt("PIPELINE_WORKERS", 0),
		PipelineQueue:        getEnvAsInt("PIPELINE_QUEUE", 256),
		PipelineDrainTimeout: getEnvAsDuration("PIPELINE_DRAIN_TIMEOUT", "30s"),

		// Derivative
		DerivativeMaxDim:      getEnvAsInt("DERIVATIVE_MAX_DIM", 800),
		DerivativeJPEGQuality: getEnvAsInt("DERIVATIVE_JPEG_QUALITY", 80),

		Analyzer: analyzerTunables(),

		// Security
		RateLimitRequests:     getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitDuration:     getEnvAsDuration("RATE_LIMIT_DURATION", "1m"),
		UploadRateLimitPerDay: getEnvAsInt("UPLOAD_RATE_LIMIT_PER_DAY", 200),

		// CORS
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		AllowedMethods: getEnvAsSlice("ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		AllowedHeaders: getEnvAsSlice("ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
	}
}

func analyzerTunables() analysis.Tunables {
	t := analysis.DefaultTunables()

	t.MinWidth = getEnvAsInt("MIN_WIDTH", t.MinWidth)
	t.MinHeight = getEnvAsInt("MIN_HEIGHT", t.MinHeight)
	t.MinBytes = getEnvAsInt64("MIN_BYTES", t.MinBytes)

	t.FaceHiResWidth = getEnvAsInt("FACE_HIRES_WIDTH", t.FaceHiResWidth)
	t.FaceHiResHeight = getEnvAsInt("FACE_HIRES_HEIGHT", t.FaceHiResHeight)
	t.FaceHiResAspect = getEnvAsFloat("FACE_HIRES_ASPECT", t.FaceHiResAspect)
	t.FaceMegapixelLimit = getEnvAsInt("FACE_MEGAPIXEL_LIMIT", t.FaceMegapixelLimit)
	t.FaceComplexStdDev = getEnvAsFloat("FACE_COMPLEX_STDDEV", t.FaceComplexStdDev)
	t.FaceGrid = getEnvAsInt("FACE_GRID", t.FaceGrid)
	t.FaceFeatureDelta = getEnvAsFloat("FACE_FEATURE_DELTA", t.FaceFeatureDelta)
	t.FaceFeatureConfidence = getEnvAsFloat("FACE_FEATURE_CONFIDENCE", t.FaceFeatureConfidence)
	t.FaceClusterRadius = getEnvAsFloat("FACE_CLUSTER_RADIUS", t.FaceClusterRadius)
	t.FaceWideClusterAspect = getEnvAsFloat("FACE_WIDE_CLUSTER_ASPECT", t.FaceWideClusterAspect)
	t.FaceManyFeatures = getEnvAsInt("FACE_MANY_FEATURES", t.FaceManyFeatures)
	t.FaceSomeFeatures = getEnvAsInt("FACE_SOME_FEATURES", t.FaceSomeFeatures)
	t.FaceLandscapeAspect = getEnvAsFloat("FACE_LANDSCAPE_ASPECT", t.FaceLandscapeAspect)
	t.FaceLandscapeWidth = getEnvAsInt("FACE_LANDSCAPE_WIDTH", t.FaceLandscapeWidth)
	t.FacePortraitMaxDim = getEnvAsInt("FACE_PORTRAIT_MAX_DIM", t.FacePortraitMaxDim)
	t.FacePortraitColorStd = getEnvAsFloat("FACE_PORTRAIT_COLOR_STDDEV", t.FacePortraitColorStd)
	t.FaceEdgeStrong = getEnvAsFloat("FACE_EDGE_STRONG", t.FaceEdgeStrong)
	t.FaceEdgeScale = getEnvAsFloat("FACE_EDGE_SCALE", t.FaceEdgeScale)

	t.BlurSharpenRatio = getEnvAsFloat("BLUR_SHARPEN_RATIO", t.BlurSharpenRatio)
	t.BlurBlockVariance = getEnvAsFloat("BLUR_BLOCK_VARIANCE", t.BlurBlockVariance)
	t.BlurSharpFraction = getEnvAsFloat("BLUR_SHARP_FRACTION", t.BlurSharpFraction)
	t.BlurEdgeResponse = getEnvAsFloat("BLUR_EDGE_RESPONSE", t.BlurEdgeResponse)
	t.BlurEdgeFraction = getEnvAsFloat("BLUR_EDGE_FRACTION", t.BlurEdgeFraction)
	t.BlurGradientFactor = getEnvAsFloat("BLUR_GRADIENT_FACTOR", t.BlurGradientFactor)
	t.BlurMotionRatio = getEnvAsFloat("BLUR_MOTION_RATIO", t.BlurMotionRatio)
	t.BlurFallbackStdDev = getEnvAsFloat("BLUR_FALLBACK_STDDEV", t.BlurFallbackStdDev)

	t.PHashMaxDistance = getEnvAsInt("PHASH_MAX_DISTANCE", t.PHashMaxDistance)

	return t
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	if duration, err := time.ParseDuration(defaultValue); err == nil {
		return duration
	}
	return time.Hour
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
