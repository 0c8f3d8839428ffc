package selection

import "errors"

var (
	// ErrSyntax indicates an unparsable selection token.
	ErrSyntax = errors.New("selection: syntax error")
	// ErrUnknownKind indicates a selection kind the parser does not handle.
	ErrUnknownKind = errors.New("selection: unknown selection kind")
)
