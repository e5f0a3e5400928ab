package agegate

// Status is the closed set of machine-readable outcomes returned to the
// surfaces. User-visible text travels in Result.Message.
type Status string

const (
	StatusAlreadyActive   Status = "already_active"
	StatusRecentAttempt   Status = "recent_attempt"
	StatusTermsRequired   Status = "terms_required"
	StatusAgeVerification Status = "age_verification"
	StatusAccessGranted   Status = "access_granted"
	StatusAccessDenied    Status = "access_denied"
	StatusCancelled       Status = "cancelled"
	StatusInvalidToken    Status = "invalid_token"
	StatusInvalidResponse Status = "invalid_response"
	StatusInvalidFormat   Status = "invalid_format"
	StatusInvalidLevel    Status = "invalid_level"
	StatusInvalidGender   Status = "invalid_gender"
	StatusDeactivated     Status = "deactivated"
	StatusNotActive       Status = "not_active"
	StatusRevoked         Status = "revoked"
	StatusActiveStatus    Status = "active_status"
	StatusNoAccess        Status = "no_access"
)

// Question kinds echoed back with an age answer.
const (
	QuestionBirthYear  = "birth_year"
	QuestionCurrentAge = "current_age"
)

// Result is the structured reply for every age-gate command.
type Result struct {
	Status       Status `json:"status"`
	Message      string `json:"message"`
	Token        string `json:"token,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
	NextPrompt   string `json:"next_prompt,omitempty"`
}

// StatusInfo is the reply for the status command.
type StatusInfo struct {
	Active    bool   `json:"active"`
	Intensity int    `json:"intensity"`
	Gender    string `json:"gender"`
	Stage     string `json:"stage"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// Audit event kinds written to the security log.
const (
	EventVerificationStarted = "verification_started"
	EventTermsAccepted       = "terms_accepted"
	EventAgeSuccess          = "age_verification_success"
	EventAgeFailedUnderage   = "age_verification_failed:underage"
	EventCancelledUser       = "verification_cancelled:user"
	EventCancelledRestarted  = "verification_cancelled:restarted"
	EventAccessRevoked       = "access_revoked"
	EventRateLimited         = "rate_limited"
)

// EventSessionDeactivated builds the reason-suffixed deactivation kind.
func EventSessionDeactivated(reason string) string {
	return "session_deactivated:" + reason
}

const (
	msgTerms = "antes de continuar preciso confirmar: você tem 18 anos ou mais? " +
		"responda ACEITO18 para confirmar ou CANCELAR para sair"
	msgAgePrompt      = "em que ano você nasceu?"
	msgAlreadyActive  = "o modo adulto já está ativo, amor 😉"
	msgRecentAttempt  = "você tentou há pouco tempo... tenta de novo mais tarde, tá?"
	msgAccessGranted  = "prontinho! modo adulto ativado 🔥 agora é só a gente"
	msgAccessDenied   = "sinto muito, esse espaço é só para maiores de 18 anos"
	msgCancelled      = "tudo bem! ficamos no modo normal mesmo 😊"
	msgInvalidToken   = "essa verificação expirou... me pede de novo que a gente recomeça"
	msgInvalidReply   = "não entendi... responda ACEITO18 ou CANCELAR"
	msgInvalidFormat  = "preciso de um número, amor. tenta de novo?"
	msgInvalidLevel   = "o nível de intensidade vai de 1 a 3"
	msgInvalidGender  = "as opções são: feminine, masculine ou neutral"
	msgDeactivated    = "modo adulto desativado. quando quiser voltar é só pedir"
	msgNotActive      = "o modo adulto não está ativo agora"
	msgRevoked        = "seu acesso ao modo adulto foi revogado"
	msgNoAccess       = "esse comando precisa do modo adulto ativo"
	msgTryAgainLater  = "opa, deu algo errado aqui do meu lado... tenta de novo em instantes?"
	msgSettingsSaved  = "prontinho, ajustei aqui! 😉"
	msgStatusInactive = "modo adulto inativo"
)

// TryAgainMessage is what the surfaces show when a command fails with a
// store or internal error.
const TryAgainMessage = msgTryAgainLater
