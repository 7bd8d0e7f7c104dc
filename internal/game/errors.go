package game

// Kind classifies an Error for transport mapping; the HTTP adapter
// picks the status code from it.
type Kind int

const (
	KindNotFound Kind = iota
	KindForbidden
	KindInvalidInput
	KindConflict
)

// Error is a typed rejection returned to the caller. Every engine
// operation either succeeds or returns one of these; there is no
// unrecoverable error class in the core.
type Error struct {
	Code string
	Kind Kind
}

func (e *Error) Error() string { return e.Code }

var (
	ErrRoomNotFound  = &Error{Code: "room_not_found", Kind: KindNotFound}
	ErrUnknownAction = &Error{Code: "unknown_action", Kind: KindNotFound}

	ErrOnlyHostCanStart = &Error{Code: "only_host_can_start", Kind: KindForbidden}
	ErrNotDJ            = &Error{Code: "not_dj", Kind: KindForbidden}
	ErrNotHost          = &Error{Code: "not_host", Kind: KindForbidden}

	ErrInvalidYear   = &Error{Code: "invalid_year", Kind: KindInvalidInput}
	ErrMissingPlayer = &Error{Code: "missing_player", Kind: KindInvalidInput}
	ErrBadCategory   = &Error{Code: "bad_category", Kind: KindInvalidInput}

	ErrNoActiveRound  = &Error{Code: "no_active_round", Kind: KindConflict}
	ErrDJCannotGuess  = &Error{Code: "dj_cannot_guess", Kind: KindConflict}
	ErrAlreadyGuessed = &Error{Code: "already_guessed", Kind: KindConflict}
	ErrAlreadyStarted = &Error{Code: "already_started", Kind: KindConflict}
)
