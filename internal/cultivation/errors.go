package cultivation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidCycleState is returned for cycles whose phase dates are not
	// strictly increasing or that have not started yet
	ErrInvalidCycleState = errors.New("invalid cycle state")

	// ErrIllegalTransition is matched by every *IllegalTransitionError
	ErrIllegalTransition = errors.New("illegal phase transition")

	ErrCycleNotActive       = errors.New("cycle is not active")
	ErrConfirmationRequired = errors.New("finishing a cycle requires confirmation")
	ErrCloningNotAllowed    = errors.New("tent category does not allow cloning")
	ErrTentBusy             = errors.New("tent already has an active cycle")
	ErrWeekOutOfRange       = errors.New("week out of range")
)

// IllegalTransitionError names the attempted and the allowed transitions
type IllegalTransitionError struct {
	From    Phase
	To      Phase
	Allowed []Phase
}

func (e *IllegalTransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, p := range e.Allowed {
		allowed[i] = string(p)
	}
	return fmt.Sprintf("illegal phase transition %s -> %s (allowed from %s: %s)",
		e.From, e.To, e.From, strings.Join(allowed, ", "))
}

func (e *IllegalTransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

// BlockerKind identifies why a tent cannot be deleted
type BlockerKind string

const (
	BlockerActiveCycle   BlockerKind = "ACTIVE_CYCLE"
	BlockerAssignedPlant BlockerKind = "ASSIGNED_PLANTS"
)

// Blocker is one precondition preventing a deletion, with its remediation
type Blocker struct {
	Kind        BlockerKind
	Detail      string
	Remediation string
}

// DeletionBlockedError lists every blocker found for a tent deletion
type DeletionBlockedError struct {
	TentID   int64
	Blockers []Blocker
}

func (e *DeletionBlockedError) Error() string {
	parts := make([]string, len(e.Blockers))
	for i, b := range e.Blockers {
		parts[i] = b.Detail
	}
	return fmt.Sprintf("tent %d cannot be deleted: %s", e.TentID, strings.Join(parts, "; "))
}
