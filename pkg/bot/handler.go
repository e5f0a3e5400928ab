// Package bot is the Discord surface: slash commands for the adult-mode
// lifecycle and a message handler that routes chat either through the
// verification dialog, the adult responder or the normal LLM path.
package bot

import (
	"errors"
	"log"
	"sync"

	"github.com/bwmarrin/discordgo"

	"luara/pkg/agegate"
	"luara/pkg/corpus"
	"luara/pkg/llm"
	"luara/pkg/responder"
	"luara/pkg/store"
)

const surfaceName = "bot"

const personaPrompt = "Você é Luara, uma companheira virtual carinhosa e bem-humorada. " +
	"Responda sempre em português, de forma curta e calorosa. " +
	"Nunca produza conteúdo adulto neste modo."

// pendingVerification tracks an in-flight dialog so plain replies can be
// routed back to the right gate step.
type pendingVerification struct {
	Token        string
	AwaitingAge  bool
	QuestionKind string
}

type Handler struct {
	gate      *agegate.Gate
	responder *responder.Responder
	store     store.Store
	llmClient LLMClient
	rng       corpus.Rand

	botID string

	pendingMu sync.Mutex
	pending   map[string]*pendingVerification
}

func NewHandler(gate *agegate.Gate, r *responder.Responder, s store.Store, llmClient LLMClient, rng corpus.Rand) *Handler {
	return &Handler{
		gate:      gate,
		responder: r,
		store:     s,
		llmClient: llmClient,
		rng:       rng,
		pending:   make(map[string]*pendingVerification),
	}
}

func (h *Handler) SetBotID(id string) {
	h.botID = id
}

func (h *Handler) setPending(userID string, p *pendingVerification) {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	if p == nil {
		delete(h.pending, userID)
		return
	}
	h.pending[userID] = p
}

func (h *Handler) getPending(userID string) *pendingVerification {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	return h.pending[userID]
}

// MessageCreate is the discordgo message handler.
func (h *Handler) MessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	h.handleMessage(&DiscordSession{Session: s}, m)
}

func (h *Handler) handleMessage(s Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == h.botID {
		return
	}

	userID := m.Author.ID
	h.rememberDisplayName(userID, m.Author.Username)

	if p := h.getPending(userID); p != nil {
		h.continueVerification(s, m.ChannelID, userID, p, m.Content)
		return
	}

	reply, err := h.responder.Respond(userID, m.Content)
	if err == nil {
		h.send(s, m.ChannelID, reply.Text)
		return
	}
	if !errors.Is(err, responder.ErrNoAccess) {
		log.Printf("Error selecting adult reply for %s: %v", userID, err)
		h.send(s, m.ChannelID, agegate.TryAgainMessage)
		return
	}

	h.normalChat(s, m.ChannelID, userID, m.Content)
}

// continueVerification feeds a plain reply into the step the user is at.
func (h *Handler) continueVerification(s Session, channelID, userID string, p *pendingVerification, content string) {
	if !p.AwaitingAge {
		res, err := h.gate.SubmitTerms(userID, p.Token, content, surfaceName, "")
		if err != nil {
			log.Printf("Error submitting terms for %s: %v", userID, err)
			h.send(s, channelID, agegate.TryAgainMessage)
			return
		}
		switch res.Status {
		case agegate.StatusAgeVerification:
			kind, prompt := h.pickAgeQuestion()
			h.setPending(userID, &pendingVerification{Token: p.Token, AwaitingAge: true, QuestionKind: kind})
			h.send(s, channelID, prompt)
		case agegate.StatusInvalidResponse:
			h.send(s, channelID, res.Message)
		default:
			// Cancelled or token gone; either way the dialog is over
			h.setPending(userID, nil)
			h.send(s, channelID, res.Message)
		}
		return
	}

	res, err := h.gate.SubmitAge(userID, p.Token, p.QuestionKind, content, surfaceName, "")
	if err != nil {
		log.Printf("Error submitting age for %s: %v", userID, err)
		h.send(s, channelID, agegate.TryAgainMessage)
		return
	}
	if res.Status == agegate.StatusInvalidFormat {
		h.send(s, channelID, res.Message)
		return
	}
	h.setPending(userID, nil)
	h.send(s, channelID, res.Message)
}

// pickAgeQuestion chooses which of the two age questions to ask.
func (h *Handler) pickAgeQuestion() (kind, prompt string) {
	if h.rng.Intn(2) == 0 {
		return agegate.QuestionBirthYear, "em que ano você nasceu?"
	}
	return agegate.QuestionCurrentAge, "quantos anos você tem?"
}

// normalChat answers through the LLM with the stored conversation window.
func (h *Handler) normalChat(s Session, channelID, userID, content string) {
	if err := s.ChannelTyping(channelID); err != nil {
		log.Printf("Error sending typing indicator: %v", err)
	}

	if err := h.store.AddRecentMessage(userID, "user", content); err != nil {
		log.Printf("Error adding recent message: %v", err)
	}

	messages := []llm.Message{{Role: "system", Content: personaPrompt}}
	recent, err := h.store.GetRecentMessages(userID)
	if err != nil {
		log.Printf("Error getting recent messages: %v", err)
	}
	for _, msg := range recent {
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Text})
	}

	answer, err := h.llmClient.ChatCompletion(messages)
	if err != nil {
		log.Printf("Error from LLM for %s: %v", userID, err)
		h.send(s, channelID, agegate.TryAgainMessage)
		return
	}

	if err := h.store.AddRecentMessage(userID, "assistant", answer); err != nil {
		log.Printf("Error adding assistant message: %v", err)
	}
	h.send(s, channelID, answer)
}

func (h *Handler) rememberDisplayName(userID, username string) {
	if username == "" {
		return
	}
	name, err := h.store.GetDisplayName(userID)
	if err != nil || name != "" {
		return
	}
	if err := h.store.SetDisplayName(userID, username); err != nil {
		log.Printf("Error saving display name for %s: %v", userID, err)
	}
}

func (h *Handler) send(s Session, channelID, content string) {
	if content == "" {
		return
	}
	if _, err := s.ChannelMessageSend(channelID, content); err != nil {
		log.Printf("Error sending message to %s: %v", channelID, err)
	}
}
