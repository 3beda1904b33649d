package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleSystem    = "system"

	DefaultSessionTitle = "New conversation"

	// Frame status values sent before the first token.
	StreamStatusProcessing = "processing"
	StreamStatusRetrieving = "retrieving"
	StreamStatusGenerating = "generating"

	// Error frame codes.
	ErrorCodeTimeout       = "generation_timeout"
	ErrorCodeGeneration    = "generation_failed"
	ErrorCodeConfiguration = "configuration_error"
	ErrorCodeInternal      = "internal_error"
	// ErrorCodeRejected is sent when a turn never started, for example
	// because the session is busy or belongs to someone else.
	ErrorCodeRejected = "request_rejected"
)

// User-facing texts. Kept polite and free of internal detail.
const (
	MessageGenerationTimeout = "Sorry, the response took too long to generate. Please send your message again."
	MessageGenerationFailed  = "Sorry, I couldn't generate a response right now. Please try again."
	MessageConfiguration     = "This assistant is not configured correctly, so I can't continue. The operator has been notified."
	MessageInternal          = "Sorry, something went wrong while handling your message."

	MessageWorkflowCompleted = "All steps are complete."
	MessageWorkflowSatisfied = "I already have everything needed for this request. Start a new session to begin again."
	MessageValidationFailed  = "That answer doesn't look right. Let's try that step again."
	MessageFieldPrompt       = "Please provide %s."
	MessageQuestionsIntro    = "Please answer the following:"
)

// SkipWords let users pass over non-required questions.
var SkipWords = []string{"skip", "pass", "n/a", "none", "lewati"}
