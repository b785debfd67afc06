package runtime

import "github.com/xiaot623/gogo/await/internal/domain"

// transitions lists the allowed status changes. Terminal statuses have no
// outgoing edges.
var transitions = map[domain.RunStatus][]domain.RunStatus{
	domain.RunStatusCreated: {
		domain.RunStatusInProgress,
		domain.RunStatusCancelled,
	},
	domain.RunStatusInProgress: {
		domain.RunStatusAwaiting,
		domain.RunStatusCompleted,
		domain.RunStatusFailed,
		domain.RunStatusCancelled,
	},
	domain.RunStatusAwaiting: {
		domain.RunStatusInProgress,
		domain.RunStatusCancelled,
	},
}

// CanTransition reports whether a run may move from one status to another.
func CanTransition(from, to domain.RunStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
