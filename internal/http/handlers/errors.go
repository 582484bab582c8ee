package handlers

// ErrorResponse codes, used by the admin routes and the router fallbacks.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeCreateFailed     = "create_failed"
	ErrCodeListFailed       = "list_failed"
)

// BotResponse reasons. Bots branch on these, so they never change.
const (
	ReasonBotNotFound          = "BOT_NOT_FOUND"
	ReasonUsernameNotAllowed   = "USERNAME_NOT_ALLOWED"
	ReasonMaxReached           = "MAX_REACHED"
	ReasonIdempotencyKeyReused = "IDEMPOTENCY_KEY_REUSED"
)

const (
	msgRequired = "username and botId are required"
	msgInternal = "Internal Server Error"
)
