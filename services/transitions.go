package services

import "civictrack/models"

// statusOrder is the linear lifecycle. REJECTED sits outside it.
var statusOrder = []models.IssueStatus{
	models.StatusPending,
	models.StatusAcknowledged,
	models.StatusInProgress,
	models.StatusResolved,
}

func statusIndex(s models.IssueStatus) int {
	for i, v := range statusOrder {
		if v == s {
			return i
		}
	}
	return -1
}

// ValidateTransition accepts a one-step forward move along statusOrder, or a
// move to REJECTED from any non-terminal status. Everything else, including
// requesting the current status again, is an invalid transition.
func ValidateTransition(from, to models.IssueStatus) error {
	if !to.Valid() {
		return invalid("status", "unknown status "+string(to))
	}
	if from.Terminal() || from == to {
		return &TransitionError{From: from, To: to}
	}
	if to == models.StatusRejected {
		return nil
	}

	oldIndex, newIndex := statusIndex(from), statusIndex(to)
	if oldIndex < 0 || newIndex != oldIndex+1 {
		return &TransitionError{From: from, To: to}
	}
	return nil
}
