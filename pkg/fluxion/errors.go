package fluxion

import (
	"fmt"
	"strings"
)

// ReactionError wraps a panic raised by a reaction's function body. It is
// delivered to the error policy chain (per-reaction handler, Runtime hook,
// or logger) and never propagates to the code that performed the triggering
// write.
type ReactionError struct {
	// Reaction is the debug name of the failing reaction.
	Reaction string

	// Err is the recovered panic value (formatted if it was not an error).
	Err error
}

// Error implements the error interface.
func (e *ReactionError) Error() string {
	return fmt.Sprintf("fluxion: reaction %s failed: %v", e.Reaction, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ReactionError) Unwrap() error {
	return e.Err
}

// CyclicReactionError reports that a propagation pass exceeded the
// Runtime's iteration bound: reactions kept re-triggering each other through
// writes performed in their own runs. It indicates a structural bug in the
// dependency graph, so it is raised as a panic that surfaces at the
// top-level write or transaction end rather than being routed to reaction
// error handlers.
type CyclicReactionError struct {
	// Limit is the iteration bound that was exceeded.
	Limit int

	// Reactions are the debug names of the reactions still pending when the
	// pass was aborted.
	Reactions []string
}

// Error implements the error interface.
func (e *CyclicReactionError) Error() string {
	return fmt.Sprintf("fluxion: propagation exceeded %d iterations, likely a reaction cycle (pending: %s)",
		e.Limit, strings.Join(e.Reactions, ", "))
}
