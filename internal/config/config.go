package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds process-wide settings read from the environment
type Config struct {
	Port      string
	DBPath    string
	JWTSecret string // empty disables auth on run creation

	// RunRateLimit caps run creations per client per minute
	RunRateLimit int

	SourcesFile  string
	BoundaryPath string
	WorkCRS      string
	MergeCRS     string
	OutputDir    string
	ScratchDir   string

	RedisAddr      string
	RedisPassword  string
	ChipWorkers    int
	ChipLimit      int
	ImageExportURL string
}

// Load reads .env (when present) and the environment
func Load() *Config {
	_ = godotenv.Load(".env")

	return &Config{
		Port:      getEnv("PORT", ":8080"),
		DBPath:    getEnv("DB_PATH", "./data/regrowth.db"),
		JWTSecret: os.Getenv("JWT_SECRET"),

		RunRateLimit: getEnvInt("RUN_RATE_LIMIT", 10),

		SourcesFile:  getEnv("SOURCES_FILE", "./sources.yaml"),
		BoundaryPath: os.Getenv("BOUNDARY_PATH"),
		WorkCRS:      getEnv("WORK_CRS", "EPSG:4326"),
		MergeCRS:     getEnv("MERGE_CRS", "EPSG:3857"),
		OutputDir:    getEnv("OUTPUT_DIR", "./data/out"),
		ScratchDir:   getEnv("SCRATCH_DIR", os.TempDir()),

		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		ChipWorkers:    getEnvInt("CHIP_WORKERS", 25),
		ChipLimit:      getEnvInt("CHIP_LIMIT", 5000),
		ImageExportURL: os.Getenv("IMAGE_EXPORT_URL"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
