package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"boxborne/internal/api"
	"boxborne/internal/config"
	"boxborne/internal/room"
	"boxborne/internal/store"
	"boxborne/internal/worldmap"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  BOXBORNE - GAME SERVER")
	log.Println("🎮 ================================")

	appConfig := config.Load()

	maps := worldmap.NewRegistry()
	if err := seedRegistry(maps); err != nil {
		log.Fatalf("failed to load bundled arena: %v", err)
	}

	accounts := store.NewMemory()
	manager := room.NewManager(appConfig, maps, accounts, api.PromMetrics{})
	server := api.NewServer(manager)

	obsCfg := api.DefaultObservabilityConfig()
	obsCfg.Enabled = appConfig.Server.DebugMode
	if err := api.StartDebugServer(obsCfg); err != nil {
		log.Printf("⚠️  debug server failed to start: %v", err)
	}

	addr := ":" + strconv.Itoa(appConfig.Server.Port)
	go func() {
		if err := server.Start(addr); err != nil {
			log.Fatalf("failed to start API server: %v", err)
		}
	}()
	log.Printf("🌐 Games API: http://localhost%s/games/createGame", addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Printf("⚠️  shutdown error: %v", err)
	}
	manager.Shutdown()
	log.Println("👋 Goodbye!")
}
