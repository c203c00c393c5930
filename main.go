package main

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/retrochat/retrovoice/internal/api"
	"github.com/retrochat/retrovoice/internal/config"
	"github.com/retrochat/retrovoice/internal/relay"
	"github.com/retrochat/retrovoice/pkg/logger"
)

func main() {
	// 1. Load Config
	config.LoadConfig()

	// 2. Init Logger
	logger.InitLogger(config.AppConfig.Log.Level)
	logger.Log.Info("Starting retrovoice relay...")

	// 3. Start Relay
	srv := relay.New(relay.Config{
		ListenAddr:  config.AppConfig.Relay.Port,
		JoinTimeout: time.Duration(config.AppConfig.Relay.JoinTimeoutSec) * time.Second,
	}, logger.Log)
	if err := srv.Start(); err != nil {
		logger.Log.Fatalf("Relay failed to start: %v", err)
	}
	defer srv.Stop()
	logger.Log.Infof("Relay listening on %s", srv.Addr())

	// 4. Init Router
	if config.AppConfig.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// Setup Routes
	rh := api.NewRelayHandler(srv)

	apiGroup := r.Group("/api/v1")
	{
		apiGroup.GET("/relay/stats", rh.GetStats)
		apiGroup.GET("/relay/events", rh.StreamEvents)
	}

	port := config.AppConfig.Server.Port
	logger.Log.Infof("Server listening on %s", port)
	if err := r.Run(port); err != nil {
		logger.Log.Fatalf("Server failed to start: %v", err)
	}
}
