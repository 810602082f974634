// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all room, physics, and transport settings.
//
// IMPORTANT: When changing values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
	"strings"
)

// =============================================================================
// GAME / ROOM CONFIGURATION
// =============================================================================

// GameConfig holds all per-room gameplay tunables recognised by the core.
type GameConfig struct {
	MaxPlayers          int // gameMaxPlayers
	MaxBots             int // gameMaxBots (reserved; bot players are not implemented)
	PhysicsResolution   int // gamePhysicsResolution, nextPosition sub-steps per tile of travel
	ConnectTimeoutSec   int // gameConnectTimeout, auth code TTL in seconds
	TickRate            int // simulation rate in Hz
	ChunkSizeTiles      int // broad-phase chunk size, in tiles
	LootboxRespawnTicks int // ticks before a taken loot box respawns
}

// DefaultGame returns the default gameplay configuration.
func DefaultGame() GameConfig {
	return GameConfig{
		MaxPlayers:          8,
		MaxBots:             2,
		PhysicsResolution:   64,
		ConnectTimeoutSec:   10,
		TickRate:            40,
		ChunkSizeTiles:      8,
		LootboxRespawnTicks: 800,
	}
}

// GameFromEnv returns gameplay configuration with environment variable overrides.
func GameFromEnv() GameConfig {
	cfg := DefaultGame()

	if v := getEnvInt("GAME_MAX_PLAYERS", 0); v > 0 {
		cfg.MaxPlayers = v
	}
	if v := getEnvInt("GAME_MAX_BOTS", -1); v >= 0 {
		cfg.MaxBots = v
	}
	if v := getEnvInt("GAME_PHYSICS_RESOLUTION", 0); v > 0 {
		cfg.PhysicsResolution = v
	}
	if v := getEnvInt("GAME_CONNECT_TIMEOUT", 0); v > 0 {
		cfg.ConnectTimeoutSec = v
	}
	if v := getEnvInt("GAME_TICK_RATE", 0); v > 0 {
		cfg.TickRate = v
	}

	return cfg
}

// =============================================================================
// ANTICHEAT / LOCKSTEP CONFIGURATION
// =============================================================================

// AnticheatConfig controls the lockstep tick-drift thresholds.
type AnticheatConfig struct {
	MaxTickLead            int64 // clientTick - serverTick above this increments fast-tick infractions
	MaxTickLag             int64 // serverTick - clientTick above this increments slow-tick infractions
	MaxFastTickInfractions int   // kick threshold for "client_too_fast"
	MaxSlowTickInfractions int   // kick threshold for "client_too_slow"
	InfractionDecayRate    int64 // global ticks between infraction decay
}

// DefaultAnticheat returns the default anticheat thresholds.
func DefaultAnticheat() AnticheatConfig {
	return AnticheatConfig{
		MaxTickLead:            40,
		MaxTickLag:             80,
		MaxFastTickInfractions: 10,
		MaxSlowTickInfractions: 20,
		InfractionDecayRate:    20,
	}
}

// =============================================================================
// CHAT CONFIGURATION
// =============================================================================

// ChatConfig holds chat relay and spam-prevention settings.
type ChatConfig struct {
	MinMillisPerMessage int
	SpamGraceCount      int
	MaxSpamPerMinute    int
	BannedWordList      []string
}

// DefaultChat returns the default chat configuration.
func DefaultChat() ChatConfig {
	return ChatConfig{
		MinMillisPerMessage: 500,
		SpamGraceCount:      3,
		MaxSpamPerMinute:    20,
		BannedWordList:      nil,
	}
}

// ChatFromEnv returns chat configuration with environment variable overrides.
func ChatFromEnv() ChatConfig {
	cfg := DefaultChat()

	if v := getEnvInt("CHAT_MIN_MILLIS_PER_MESSAGE", 0); v > 0 {
		cfg.MinMillisPerMessage = v
	}
	if v := getEnvInt("CHAT_SPAM_GRACE_COUNT", -1); v >= 0 {
		cfg.SpamGraceCount = v
	}
	if v := getEnvInt("CHAT_MAX_SPAM_PER_MINUTE", 0); v > 0 {
		cfg.MaxSpamPerMinute = v
	}
	if v := os.Getenv("CHAT_BANNED_WORD_LIST"); v != "" {
		cfg.BannedWordList = strings.Split(v, ",")
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings for the hub process.
type ServerConfig struct {
	Port      int
	DebugMode bool
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:      8080,
		DebugMode: false,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if os.Getenv("DEBUG_MODE") == "true" {
		cfg.DebugMode = true
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Game      GameConfig
	Anticheat AnticheatConfig
	Chat      ChatConfig
	Server    ServerConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Game:      GameFromEnv(),
		Anticheat: DefaultAnticheat(),
		Chat:      ChatFromEnv(),
		Server:    ServerFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
