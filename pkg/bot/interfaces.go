package bot

import (
	"github.com/bwmarrin/discordgo"

	"luara/pkg/llm"
)

// Session interface abstracts discordgo.Session for testing
type Session interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) (err error)
}

// DiscordSession adapts discordgo.Session to the Session interface
type DiscordSession struct {
	*discordgo.Session
}

type LLMClient interface {
	ChatCompletion(messages []llm.Message) (string, error)
}
