package conversation

import "conversation-service/internal/models"

// ActiveThreads keeps threads the user has accepted and not archived.
func ActiveThreads(threads []models.Thread, userID string) []models.Thread {
	return filterByState(threads, userID, models.ThreadActive)
}

// RequestThreads keeps threads the user has not accepted yet.
func RequestThreads(threads []models.Thread, userID string) []models.Thread {
	return filterByState(threads, userID, models.ThreadPending)
}

// ArchivedThreads keeps accepted threads the user has archived.
func ArchivedThreads(threads []models.Thread, userID string) []models.Thread {
	return filterByState(threads, userID, models.ThreadArchived)
}

func filterByState(threads []models.Thread, userID string, state models.ThreadState) []models.Thread {
	out := make([]models.Thread, 0, len(threads))
	for _, t := range threads {
		if t.IsParticipant(userID) && t.StateFor(userID) == state {
			out = append(out, t)
		}
	}
	return out
}
