package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/arnavshah/workforce-scheduler-go/pkg/auth"
	"github.com/arnavshah/workforce-scheduler-go/pkg/config"
	"github.com/arnavshah/workforce-scheduler-go/pkg/database"
	"github.com/arnavshah/workforce-scheduler-go/pkg/engine"
	"github.com/arnavshah/workforce-scheduler-go/pkg/handlers"
	"github.com/arnavshah/workforce-scheduler-go/pkg/store"
)

func main() {
	// Load .env if it exists
	// Try root and parent directories for flexibility
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, p := range envPaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			break
		}
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg := config.Load()
	db := database.InitDB()
	_ = auth.EnsureAdminExists(db)

	st := store.New(db)
	runner := engine.NewRunner(st, engine.Config{
		Workers:            cfg.EngineWorkers,
		RunTimeout:         cfg.RunTimeout,
		SweepEvery:         cfg.SweepEvery,
		AutoAssignLeadDays: cfg.AutoAssignLeadDays,
	})
	runner.Start(context.Background())
	defer runner.Stop()

	h := &handlers.Handler{DB: db, Store: st, Engine: runner}

	r := gin.Default()

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Workforce Scheduler API",
			"version": "1.0.0",
		})
	})

	r.POST("/login", h.Login)

	api := r.Group("/api")
	api.Use(h.AuthMiddleware())
	{
		api.POST("/roles/:roleID/schedules", h.OpenNextWeek)
		api.GET("/schedules/:id", h.GetSchedule)
		api.PUT("/schedules/:id/demand", h.UpdateDemand)
		api.POST("/schedules/:id/generate", h.Generate)
		api.POST("/schedules/:id/revert", h.Revert)
		api.GET("/schedules/:id/report", h.RunReport)
		api.GET("/schedules/:id/shifts", h.ListShifts)
		api.POST("/schedules/:id/shifts", h.CreateShift)
		api.POST("/schedules/:id/recurring", h.ExpandRecurring)
		api.PUT("/schedules/:id/preferences/:userID", h.UpsertPreference)
		api.PATCH("/shifts/:id", h.PatchShift)
		api.DELETE("/shifts/:id", h.DeleteShift)
		api.GET("/shifts/:id/eligible", h.EligibleWorkers)
		api.GET("/locations/:id/attendance", h.Attendance)
	}

	port := cfg.Port
	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}
