package main

import (
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"luara/pkg/agegate"
	"luara/pkg/bot"
	"luara/pkg/cache"
	"luara/pkg/config"
	"luara/pkg/corpus"
	"luara/pkg/llm"
	"luara/pkg/profile"
	"luara/pkg/responder"
	"luara/pkg/store"
	"luara/pkg/surreal"
	"luara/pkg/token"
	"luara/pkg/web"

	"github.com/bwmarrin/discordgo"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
)

func main() {
	// Load config.yml
	cfg, err := config.LoadConfig("config.yml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Load .env for secrets
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	discordToken := os.Getenv("DISCORD_TOKEN")
	llmKey := os.Getenv("LLM_API_KEY")

	if discordToken == "" {
		log.Fatal("Missing required environment variable: DISCORD_TOKEN")
	}
	if llmKey == "" {
		log.Fatal("Missing required environment variable: LLM_API_KEY")
	}

	// Initialize SurrealDB
	surrealHost := os.Getenv("SURREAL_DB_HOST")
	surrealUser := os.Getenv("SURREAL_DB_USER")
	surrealPass := os.Getenv("SURREAL_DB_PASS")
	surrealNS := os.Getenv("SURREAL_DB_NAMESPACE")
	surrealDB := os.Getenv("SURREAL_DB_DATABASE")

	if surrealHost == "" {
		log.Fatal("Missing required environment variable: SURREAL_DB_HOST")
	}
	if surrealUser == "" {
		log.Fatal("Missing required environment variable: SURREAL_DB_USER")
	}
	if surrealPass == "" {
		log.Fatal("Missing required environment variable: SURREAL_DB_PASS")
	}
	if surrealNS == "" {
		surrealNS = "luara"
	}
	if surrealDB == "" {
		surrealDB = "companion"
	}

	// Add protocol if missing
	if !strings.HasPrefix(surrealHost, "ws://") && !strings.HasPrefix(surrealHost, "wss://") {
		surrealHost = "wss://" + surrealHost + "/rpc"
	}

	log.Printf("Connecting to SurrealDB at %s (NS: %s, DB: %s)", surrealHost, surrealNS, surrealDB)
	surrealClient, err := surreal.NewClient(surrealHost, surrealUser, surrealPass, surrealNS, surrealDB)
	if err != nil {
		log.Fatalf("Failed to connect to SurrealDB: %v", err)
	}
	defer surrealClient.Close()

	dataStore := store.NewSurrealStore(surrealClient)
	if err := dataStore.Init(); err != nil {
		log.Fatalf("Failed to initialise store schema: %v", err)
	}

	// Sweep sessions that expired while the process was down
	if n, err := dataStore.DeactivateExpiredSessions(time.Now()); err != nil {
		log.Printf("Error sweeping expired sessions: %v", err)
	} else if n > 0 {
		log.Printf("Deactivated %d expired session(s) on startup", n)
	}

	// Seed the content corpus on first boot
	catalogue, err := corpus.LoadCatalogue()
	if err != nil {
		log.Fatalf("Failed to load content catalogue: %v", err)
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	contentCorpus := corpus.New(dataStore, catalogue, rng)
	if err := contentCorpus.Seed(); err != nil {
		log.Fatalf("Failed to seed content corpus: %v", err)
	}

	// Optional Redis fast paths for cooldown and granted checks
	var cooldown agegate.CooldownCache
	var sessionCache agegate.SessionCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		redisCache, err := cache.NewRedisCache(redisURL, "luara")
		if err != nil {
			log.Printf("Redis unavailable, continuing without cache: %v", err)
		} else {
			defer redisCache.Close()
			cooldown = redisCache
			sessionCache = redisCache
			log.Println("Redis cache connected")
		}
	}

	profiles := profile.NewManager(dataStore, time.Now)
	gate := agegate.New(dataStore, token.NewService(), profiles, agegate.Options{
		VerificationTTL: time.Duration(cfg.AgeGate.VerificationTTLMins) * time.Minute,
		SessionTTL:      time.Duration(cfg.AgeGate.SessionTTLHours) * time.Hour,
		CooldownWindow:  time.Duration(cfg.AgeGate.UnderageCooldownHours) * time.Hour,
		Cooldown:        cooldown,
		Sessions:        sessionCache,
	})

	adultResponder := responder.New(gate, profiles, contentCorpus, dataStore, rng, cfg.Responder.SituationalSuffixProb)
	llmClient := llm.NewClient(cfg.ModelSettings.BaseURL, llmKey, cfg.ModelSettings.Model, cfg.ModelSettings.Temperature)

	handler := bot.NewHandler(gate, adultResponder, dataStore, llmClient, rng)

	// Create Discord Session
	dg, err := discordgo.New("Bot " + discordToken)
	if err != nil {
		log.Fatalf("Error creating Discord session: %v", err)
	}

	dg.AddHandler(handler.MessageCreate)
	dg.AddHandler(handler.InteractionCreate)

	if err := dg.Open(); err != nil {
		log.Fatalf("Error opening connection: %v", err)
	}
	handler.SetBotID(dg.State.User.ID)

	guildID := os.Getenv("DISCORD_GUILD_ID")
	registeredCommands, err := bot.RegisterSlashCommands(dg, guildID)
	if err != nil {
		log.Fatalf("Error registering slash commands: %v", err)
	}
	defer func() {
		if err := bot.UnregisterSlashCommands(dg, guildID, registeredCommands); err != nil {
			log.Printf("Error unregistering slash commands: %v", err)
		}
	}()

	// Web surface
	app := fiber.New()
	web.NewAdultHandler(gate, adultResponder).SetupRoutes(app)
	go func() {
		log.Printf("HTTP API listening on %s", cfg.Web.Listen)
		if err := app.Listen(cfg.Web.Listen); err != nil {
			log.Printf("HTTP server stopped: %v", err)
		}
	}()

	log.Println("Luara is now running. Press CTRL-C to exit.")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	if err := app.Shutdown(); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}
	dg.Close()
}
