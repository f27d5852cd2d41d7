package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/jengzang/regrowth-dataset/internal/api"
	"github.com/jengzang/regrowth-dataset/internal/config"
	"github.com/jengzang/regrowth-dataset/internal/database"
	"github.com/jengzang/regrowth-dataset/internal/repository"
	"github.com/jengzang/regrowth-dataset/internal/service"

	// GDAL vector and raster drivers
	_ "github.com/jengzang/regrowth-dataset/internal/gdalio"
	// Register pipeline stages
	_ "github.com/jengzang/regrowth-dataset/internal/pipeline/stages"
)

func main() {
	cfg := config.Load()

	if err := database.Init(database.Config{Path: cfg.DBPath}); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := database.GetDB()
	runs := service.NewRunService(ctx, repository.NewRunRepository(db), repository.NewPointRepository(db), cfg)
	router := api.SetupRouter(cfg, runs)

	if cfg.JWTSecret == "" {
		log.Printf("Warning: JWT_SECRET is not set, run creation is unauthenticated")
	}
	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
