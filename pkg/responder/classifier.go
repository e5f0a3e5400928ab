package responder

import "strings"

// Message contexts, in classification priority order.
const (
	ContextGreeting     = "greeting"
	ContextFlirt        = "flirt"
	ContextSexual       = "sexual"
	ContextProvocation  = "provocation"
	ContextAffectionate = "affectionate"
	ContextGeneral      = "general"
)

// Keyword tables per context. Single words match on word boundaries,
// phrases match as substrings; the first context in priority order with a
// hit wins.
var contextKeywords = []struct {
	context  string
	keywords []string
}{
	{ContextGreeting, []string{"oi", "oie", "olá", "ola", "bom dia", "boa tarde", "boa noite", "e aí", "hey", "hello"}},
	{ContextFlirt, []string{"linda", "lindo", "gostosa", "gostoso", "beijo", "charmosa", "sexy", "tesão", "atraente"}},
	{ContextSexual, []string{"transar", "sexo", "cama", "safada", "safado", "nua", "pelada", "desejo"}},
	{ContextProvocation, []string{"provocar", "provoca", "duvido", "aposto", "desafio", "atreve"}},
	{ContextAffectionate, []string{"saudade", "te amo", "amo você", "carinho", "coração", "abraço", "querida", "querido"}},
}

func normalizeWords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?' || r == ';' || r == ':' || r == '\n' || r == '\t'
	}) {
		words[w] = true
	}
	return words
}

// Classify maps an incoming message to one of the fixed contexts. Empty or
// unmatched input falls through to general.
func Classify(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return ContextGeneral
	}
	words := normalizeWords(lower)
	for _, entry := range contextKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(kw, " ") {
				if strings.Contains(lower, kw) {
					return entry.context
				}
			} else if words[kw] {
				return entry.context
			}
		}
	}
	return ContextGeneral
}

// categoryFor maps a message context to the corpus category drawn from.
func categoryFor(context string) string {
	switch context {
	case ContextGreeting:
		return "greetings"
	case ContextFlirt, ContextAffectionate:
		return "flirts"
	case ContextSexual, ContextProvocation:
		return "provocations"
	default:
		return "general_chat"
	}
}
