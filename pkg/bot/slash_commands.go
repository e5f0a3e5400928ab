package bot

import (
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"

	"luara/pkg/agegate"
	"luara/pkg/store"
)

// SlashCommands defines all available slash commands
var SlashCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "modo18",
		Description: "Inicia a verificação de idade para ativar o modo adulto",
	},
	{
		Name:        "status18",
		Description: "Mostra o status do modo adulto e suas preferências",
	},
	{
		Name:        "intensidade",
		Description: "Ajusta o nível de intensidade do modo adulto (1 a 3)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "nivel",
				Description: "Nível de 1 (leve) a 3 (intenso)",
				Required:    true,
			},
		},
	},
	{
		Name:        "genero",
		Description: "Ajusta a preferência de gênero das respostas",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "preferencia",
				Description: "Registro de gênero das respostas",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "feminino", Value: "feminine"},
					{Name: "masculino", Value: "masculine"},
					{Name: "neutro", Value: "neutral"},
				},
			},
		},
	},
	{
		Name:        "desativar",
		Description: "Desativa o modo adulto",
	},
}

// SlashCommandHandlers maps command names to their handler functions
var SlashCommandHandlers = map[string]func(h *Handler, s *discordgo.Session, i *discordgo.InteractionCreate){
	"modo18":      handleActivateCommand,
	"status18":    handleStatusCommand,
	"intensidade": handleIntensityCommand,
	"genero":      handleGenderCommand,
	"desativar":   handleDeactivateCommand,
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("Error responding to interaction: %v", err)
	}
}

func handleActivateCommand(h *Handler, s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID := interactionUserID(i)
	if userID == "" {
		return
	}

	res, err := h.gate.RequestActivation(userID, surfaceName, "")
	if err != nil {
		log.Printf("Error starting verification for %s: %v", userID, err)
		respondEphemeral(s, i, agegate.TryAgainMessage)
		return
	}

	if res.Status == agegate.StatusTermsRequired {
		h.setPending(userID, &pendingVerification{Token: res.Token})
	}
	respondEphemeral(s, i, res.Message)
}

func handleStatusCommand(h *Handler, s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID := interactionUserID(i)
	if userID == "" {
		return
	}

	info, err := h.gate.Status(userID)
	if err != nil {
		log.Printf("Error getting status for %s: %v", userID, err)
		respondEphemeral(s, i, agegate.TryAgainMessage)
		return
	}

	if !info.Active {
		respondEphemeral(s, i, "modo adulto: inativo")
		return
	}

	content := fmt.Sprintf(
		"modo adulto: ativo\nintensidade: %d\ngênero: %s\nestágio: %s\nexpira em: %s",
		info.Intensity, info.Gender, info.Stage,
		time.Unix(info.ExpiresAt, 0).Format("02/01/2006"),
	)
	respondEphemeral(s, i, content)
}

func handleIntensityCommand(h *Handler, s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID := interactionUserID(i)
	if userID == "" {
		return
	}

	opts := i.ApplicationCommandData().Options
	if len(opts) == 0 {
		return
	}
	level := int(opts[0].IntValue())

	res, err := h.gate.SetIntensity(userID, level)
	if err != nil {
		log.Printf("Error setting intensity for %s: %v", userID, err)
		respondEphemeral(s, i, agegate.TryAgainMessage)
		return
	}
	respondEphemeral(s, i, res.Message)
}

func handleGenderCommand(h *Handler, s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID := interactionUserID(i)
	if userID == "" {
		return
	}

	opts := i.ApplicationCommandData().Options
	if len(opts) == 0 {
		return
	}
	pref := opts[0].StringValue()

	res, err := h.gate.SetGender(userID, pref)
	if err != nil {
		log.Printf("Error setting gender preference for %s: %v", userID, err)
		respondEphemeral(s, i, agegate.TryAgainMessage)
		return
	}
	respondEphemeral(s, i, res.Message)
}

func handleDeactivateCommand(h *Handler, s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID := interactionUserID(i)
	if userID == "" {
		return
	}

	res, err := h.gate.Deactivate(userID, store.ReasonUser, surfaceName, "")
	if err != nil {
		log.Printf("Error deactivating for %s: %v", userID, err)
		respondEphemeral(s, i, agegate.TryAgainMessage)
		return
	}
	respondEphemeral(s, i, res.Message)
}

// InteractionCreate handles all slash command interactions
func (h *Handler) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	commandName := i.ApplicationCommandData().Name
	if handler, ok := SlashCommandHandlers[commandName]; ok {
		handler(h, s, i)
	} else {
		log.Printf("Unknown slash command: %s", commandName)
	}
}

// RegisterSlashCommands registers all slash commands with Discord
func RegisterSlashCommands(s *discordgo.Session, guildID string) ([]*discordgo.ApplicationCommand, error) {
	log.Println("Registering slash commands...")

	registeredCommands := make([]*discordgo.ApplicationCommand, len(SlashCommands))
	for i, cmd := range SlashCommands {
		registeredCmd, err := s.ApplicationCommandCreate(s.State.User.ID, guildID, cmd)
		if err != nil {
			log.Printf("Cannot create '%s' command: %v", cmd.Name, err)
			return nil, err
		}
		registeredCommands[i] = registeredCmd
		log.Printf("Registered command: %s", cmd.Name)
	}

	return registeredCommands, nil
}

// UnregisterSlashCommands removes all registered slash commands
func UnregisterSlashCommands(s *discordgo.Session, guildID string, commands []*discordgo.ApplicationCommand) error {
	log.Println("Unregistering slash commands...")

	for _, cmd := range commands {
		if err := s.ApplicationCommandDelete(s.State.User.ID, guildID, cmd.ID); err != nil {
			log.Printf("Cannot delete '%s' command: %v", cmd.Name, err)
			return err
		}
		log.Printf("Unregistered command: %s", cmd.Name)
	}

	return nil
}
