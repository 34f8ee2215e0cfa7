package handlers

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt"

	"github.com/mrsingh-rishi/polyglot-rooms/broadcast"
	"github.com/mrsingh-rishi/polyglot-rooms/room"
	"github.com/mrsingh-rishi/polyglot-rooms/session"
	"github.com/mrsingh-rishi/polyglot-rooms/usage"
)

// Handler wires the HTTP surface to the orchestrator and the process-scoped
// registries.
type Handler struct {
	Session     *session.Session
	Broadcaster *broadcast.Broadcaster
	Rooms       *room.Registry
	Usage       *usage.Accumulator
	AdminSecret string
}

// Register mounts all routes on the app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Post("/translate", h.Translate)

	app.Use("/subscribe", h.subscribeGuard)
	app.Get("/subscribe", websocket.New(h.Subscribe))

	app.Get("/usage", h.requireAdmin, h.UsageSnapshot)
	app.Post("/usage/reset", h.requireAdmin, h.UsageReset)
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Translate accepts one raw audio segment and runs it through the pipeline.
func (h *Handler) Translate(c *fiber.Ctx) error {
	mimeType := c.Get("X-Audio-Mime")
	if mimeType == "" {
		mimeType = c.Get(fiber.HeaderContentType)
	}

	req := session.Request{
		Audio:       c.Body(),
		MimeType:    mimeType,
		SourceLang:  c.Query("sourceLang"),
		TargetLangs: targetLanguages(c),
		OutputMode:  c.Query("outputMode", session.ModeText),
		Room:        c.Query("room", session.DefaultRoom),
		Passcode:    c.Query("passcode"),
		Context:     c.Query("context"),
	}

	result, err := h.Session.Process(c.UserContext(), req)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrPasscodeRequired), errors.Is(err, session.ErrEmptyAudio):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, session.ErrPasscodeMismatch):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
		default:
			log.Printf("translate request failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}
	return c.JSON(result)
}

// subscribeGuard validates and authorizes the subscription before the
// connection is upgraded, so rejections still travel as plain HTTP.
func (h *Handler) subscribeGuard(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	channel := c.Query("channel")
	if channel == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "`channel` query parameter is required"})
	}
	roomID := c.Query("room", session.DefaultRoom)
	if !h.Rooms.BindOrCheck(roomID, c.Query("passcode")) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "passcode does not match this room"})
	}

	c.Locals("allowed", true)
	c.Locals("channel", channel)
	return c.Next()
}

// Subscribe holds the websocket open, pushing every event published on the
// channel until the client goes away. Cleanup runs exactly once no matter
// how the connection ends.
func (h *Handler) Subscribe(conn *websocket.Conn) {
	channel, _ := conn.Locals("channel").(string)
	if channel == "" {
		conn.Close()
		return
	}

	listener := broadcast.NewListener(conn)
	if err := h.Broadcaster.Subscribe(channel, listener); err != nil {
		log.Printf("subscribe %s failed: %v", channel, err)
		conn.Close()
		return
	}
	defer h.Broadcaster.Drop(listener)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("listener %s read error: %v", listener.ID, err)
			}
			return
		}
	}
}

func (h *Handler) UsageSnapshot(c *fiber.Ctx) error {
	return c.JSON(h.Usage.Snapshot())
}

func (h *Handler) UsageReset(c *fiber.Ctx) error {
	h.Usage.Reset()
	return c.JSON(fiber.Map{"message": "usage counters reset"})
}

// requireAdmin guards the usage endpoints with an HS256 bearer token.
func (h *Handler) requireAdmin(c *fiber.Ctx) error {
	if h.AdminSecret == "" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin endpoints are disabled"})
	}

	auth := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "bearer token required"})
	}

	token, err := jwt.Parse(strings.TrimPrefix(auth, "Bearer "), func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(h.AdminSecret), nil
	})
	if err != nil || !token.Valid {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
	}
	return c.Next()
}

// targetLanguages gathers every requested target language: `targetLang` may
// repeat, and `targetLangs` may carry a comma-joined list. Deduplication
// happens in the session.
func targetLanguages(c *fiber.Ctx) []string {
	var langs []string
	args := c.Context().QueryArgs()
	for _, v := range args.PeekMulti("targetLang") {
		langs = append(langs, string(v))
	}
	for _, v := range args.PeekMulti("targetLangs") {
		langs = append(langs, strings.Split(string(v), ",")...)
	}
	return langs
}
