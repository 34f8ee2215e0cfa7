package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/polyglot-rooms/broadcast"
	"github.com/mrsingh-rishi/polyglot-rooms/config"
	"github.com/mrsingh-rishi/polyglot-rooms/handlers"
	"github.com/mrsingh-rishi/polyglot-rooms/llm"
	"github.com/mrsingh-rishi/polyglot-rooms/room"
	"github.com/mrsingh-rishi/polyglot-rooms/session"
	"github.com/mrsingh-rishi/polyglot-rooms/stt"
	"github.com/mrsingh-rishi/polyglot-rooms/tts"
	"github.com/mrsingh-rishi/polyglot-rooms/usage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = cfg.BaseURL
	}
	api := openai.NewClientWithConfig(apiConfig)

	rooms := room.NewRegistry()
	broadcaster := broadcast.New(cfg.PingInterval)
	accumulator := usage.NewAccumulator(cfg.ChatModel)

	h := &handlers.Handler{
		Session: &session.Session{
			Transcriber: stt.NewClient(api, cfg.WhisperModel, cfg.UpstreamTimeout),
			Translator:  llm.NewClient(api, cfg.ChatModel, cfg.UpstreamTimeout),
			Synthesizer: tts.NewClient(api, cfg.TTSModel, cfg.Voice, cfg.UpstreamTimeout),
			Publisher:   broadcaster,
			Rooms:       rooms,
			Usage:       accumulator,
		},
		Broadcaster: broadcaster,
		Rooms:       rooms,
		Usage:       accumulator,
		AdminSecret: cfg.AdminSecret,
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 25 * 1024 * 1024, // recorded segments arrive as one blob
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	h.Register(app)
	app.Static("/", cfg.StaticDir)

	log.Printf("listening on %s", cfg.Addr)
	log.Fatal(app.Listen(cfg.Addr))
}
