package quarantine

// Code classifies the outcome of a quarantine operation. Expected failures
// are codes, not errors: callers switch on them to pick the user-facing
// message and the fallback path.
type Code int

const (
	CodeOK Code = iota
	// CodeNotConfigured means no quarantine role is set for the guild. This
	// is an exploitable gap and must be surfaced to the owner, never
	// swallowed.
	CodeNotConfigured
	// CodeRoleNotFound means the configured quarantine role no longer exists.
	CodeRoleNotFound
	// CodeHierarchy means the bot's own role sits too low to edit the
	// member. Callers fall back to an outright ban.
	CodeHierarchy
	// CodeNotInQuarantine means no active record exists for the member.
	CodeNotInQuarantine
	// CodeUserNotFound means the member is not in the guild.
	CodeUserNotFound
	// CodeStorage is the generic database failure. The operation is
	// reported failed and never retried silently.
	CodeStorage
)

var codeNames = map[Code]string{
	CodeOK:              "ok",
	CodeNotConfigured:   "quarantine_not_configured",
	CodeRoleNotFound:    "quarantine_role_not_found",
	CodeHierarchy:       "hierarchy_error",
	CodeNotInQuarantine: "not_in_quarantine",
	CodeUserNotFound:    "user_not_found",
	CodeStorage:         "db_error",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "unknown"
}

// Result is the descriptor every state-machine operation returns.
type Result struct {
	Code Code
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool { return r.Code == CodeOK }

func ok() Result         { return Result{Code: CodeOK} }
func fail(c Code) Result { return Result{Code: c} }
