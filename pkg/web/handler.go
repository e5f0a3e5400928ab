// Package web is the HTTP surface: a small Fiber API exposing the adult-mode
// lifecycle and message endpoint for the web client.
package web

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"luara/pkg/agegate"
	"luara/pkg/responder"
	"luara/pkg/store"
)

const surfaceName = "web"

type AdultHandler struct {
	gate      *agegate.Gate
	responder *responder.Responder
}

func NewAdultHandler(gate *agegate.Gate, r *responder.Responder) *AdultHandler {
	return &AdultHandler{gate: gate, responder: r}
}

func (h *AdultHandler) SetupRoutes(app *fiber.App) {
	adult := app.Group("/adult")

	adult.Post("/activate", h.Activate)
	adult.Post("/terms", h.Terms)
	adult.Post("/verify_age", h.VerifyAge)
	adult.Get("/status/:userID", h.Status)
	adult.Post("/deactivate", h.Deactivate)
	adult.Post("/revoke", h.Revoke)
	adult.Put("/intensity", h.Intensity)
	adult.Put("/gender", h.Gender)
	adult.Post("/message", h.Message)
}

// ipHash pseudonymises the caller address before it reaches the audit log.
func ipHash(ctx *fiber.Ctx) string {
	sum := sha256.Sum256([]byte(ctx.IP()))
	return hex.EncodeToString(sum[:])[:16]
}

// statusCode maps a gate outcome to an HTTP status.
func statusCode(status agegate.Status) int {
	switch status {
	case agegate.StatusInvalidToken, agegate.StatusInvalidResponse,
		agegate.StatusInvalidFormat, agegate.StatusInvalidLevel,
		agegate.StatusInvalidGender:
		return fiber.StatusBadRequest
	case agegate.StatusAccessDenied, agegate.StatusNoAccess:
		return fiber.StatusForbidden
	case agegate.StatusRecentAttempt:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusOK
	}
}

func sendResult(ctx *fiber.Ctx, res agegate.Result, err error) error {
	if err != nil {
		log.Printf("Gate command failed: %v", err)
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "unavailable",
			"message": agegate.TryAgainMessage,
		})
	}
	return ctx.Status(statusCode(res.Status)).JSON(res)
}

func (h *AdultHandler) Activate(ctx *fiber.Ctx) error {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := ctx.BodyParser(&req); err != nil || req.UserID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user_id is required")
	}

	res, err := h.gate.RequestActivation(req.UserID, surfaceName, ipHash(ctx))
	return sendResult(ctx, res, err)
}

func (h *AdultHandler) Terms(ctx *fiber.Ctx) error {
	var req struct {
		UserID   string `json:"user_id"`
		Token    string `json:"token"`
		Response string `json:"response"`
	}
	if err := ctx.BodyParser(&req); err != nil || req.UserID == "" || req.Token == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user_id and token are required")
	}

	res, err := h.gate.SubmitTerms(req.UserID, req.Token, req.Response, surfaceName, ipHash(ctx))
	return sendResult(ctx, res, err)
}

// VerifyAge takes a birth date, derives the current age and submits it.
func (h *AdultHandler) VerifyAge(ctx *fiber.Ctx) error {
	var req struct {
		UserID    string `json:"user_id"`
		Token     string `json:"token"`
		BirthDate string `json:"birth_date"`
	}
	if err := ctx.BodyParser(&req); err != nil || req.UserID == "" || req.Token == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user_id and token are required")
	}

	age, ok := ageFromBirthDate(req.BirthDate, time.Now())
	if !ok {
		return ctx.Status(fiber.StatusBadRequest).JSON(agegate.Result{
			Status:  agegate.StatusInvalidFormat,
			Message: "birth_date must be YYYY-MM-DD",
		})
	}

	res, err := h.gate.SubmitAge(req.UserID, req.Token, agegate.QuestionCurrentAge,
		strconv.Itoa(age), surfaceName, ipHash(ctx))
	return sendResult(ctx, res, err)
}

func (h *AdultHandler) Status(ctx *fiber.Ctx) error {
	userID := ctx.Params("userID")
	if userID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "userID is required")
	}

	info, err := h.gate.Status(userID)
	if err != nil {
		log.Printf("Status lookup failed: %v", err)
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "unavailable",
			"message": agegate.TryAgainMessage,
		})
	}
	return ctx.JSON(info)
}

func (h *AdultHandler) Deactivate(ctx *fiber.Ctx) error {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := ctx.BodyParser(&req); err != nil || req.UserID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user_id is required")
	}

	res, err := h.gate.Deactivate(req.UserID, store.ReasonUser, surfaceName, ipHash(ctx))
	return sendResult(ctx, res, err)
}

func (h *AdultHandler) Revoke(ctx *fiber.Ctx) error {
	var req struct {
		UserID string `json:"user_id"`
		Reason string `json:"reason"`
	}
	if err := ctx.BodyParser(&req); err != nil || req.UserID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user_id is required")
	}
	if req.Reason == "" {
		req.Reason = store.ReasonRevoked
	}

	res, err := h.gate.Revoke(req.UserID, req.Reason, surfaceName, ipHash(ctx))
	return sendResult(ctx, res, err)
}

func (h *AdultHandler) Intensity(ctx *fiber.Ctx) error {
	var req struct {
		UserID string `json:"user_id"`
		Level  int    `json:"level"`
	}
	if err := ctx.BodyParser(&req); err != nil || req.UserID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user_id is required")
	}

	res, err := h.gate.SetIntensity(req.UserID, req.Level)
	return sendResult(ctx, res, err)
}

func (h *AdultHandler) Gender(ctx *fiber.Ctx) error {
	var req struct {
		UserID     string `json:"user_id"`
		Preference string `json:"preference"`
	}
	if err := ctx.BodyParser(&req); err != nil || req.UserID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user_id is required")
	}

	res, err := h.gate.SetGender(req.UserID, req.Preference)
	return sendResult(ctx, res, err)
}

func (h *AdultHandler) Message(ctx *fiber.Ctx) error {
	var req struct {
		UserID string `json:"user_id"`
		Text   string `json:"text"`
	}
	if err := ctx.BodyParser(&req); err != nil || req.UserID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user_id is required")
	}

	reply, err := h.responder.Respond(req.UserID, req.Text)
	if errors.Is(err, responder.ErrNoAccess) {
		return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"status": string(agegate.StatusNoAccess),
		})
	}
	if err != nil {
		log.Printf("Message failed for %s: %v", req.UserID, err)
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "unavailable",
			"message": agegate.TryAgainMessage,
		})
	}
	return ctx.JSON(fiber.Map{
		"text":    reply.Text,
		"context": reply.Context,
	})
}

// ageFromBirthDate computes completed years between the date and now.
func ageFromBirthDate(birthDate string, now time.Time) (int, bool) {
	d, err := time.Parse("2006-01-02", birthDate)
	if err != nil || d.After(now) {
		return 0, false
	}
	age := now.Year() - d.Year()
	if now.Month() < d.Month() || (now.Month() == d.Month() && now.Day() < d.Day()) {
		age--
	}
	return age, true
}
