package constant

// Ключи структурированных логов
const (
	Error     = "error"
	UserID    = "user_id"
	UserName  = "user_name"
	SessionID = "session_id"
	Event     = "event"
	Phase     = "phase"
	Role      = "role"
	Path      = "path"
	Attempt   = "attempt"
)
