package obligation

import "github.com/google/uuid"

// SavedEvent is published after an obligation row has been written.
// PreviousMechanismID is set when an update moved the obligation off another mechanism.
type SavedEvent struct {
	Obligation          Obligation
	Created             bool
	PreviousMechanismID *uuid.UUID
}
