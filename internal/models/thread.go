package models

import (
	"sort"
	"time"
)

// Thread represents a conversation between exactly two users.
type Thread struct {
	ID             int64      `json:"id"`
	ParticipantIDs []string   `json:"participant_ids"`
	AcceptedBy     []string   `json:"accepted_by"`
	ArchivedBy     []string   `json:"archived_by"`
	MutedBy        []string   `json:"muted_by"`
	ContactedBy    []string   `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
}

// ThreadState is the state of a thread as seen by one participant.
type ThreadState string

const (
	ThreadPending  ThreadState = "pending"
	ThreadActive   ThreadState = "active"
	ThreadArchived ThreadState = "archived"
)

// CanonicalPair orders two user ids so that a pair maps to one thread regardless of who initiated it.
func CanonicalPair(a, b string) (string, string) {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0], pair[1]
}

// IsParticipant reports whether userID is one of the two participants.
func (t Thread) IsParticipant(userID string) bool {
	return containsID(t.ParticipantIDs, userID)
}

// OtherParticipant returns the participant that is not userID.
func (t Thread) OtherParticipant(userID string) (string, bool) {
	if !t.IsParticipant(userID) {
		return "", false
	}
	for _, id := range t.ParticipantIDs {
		if id != userID {
			return id, true
		}
	}
	return "", false
}

func (t Thread) HasAccepted(userID string) bool { return containsID(t.AcceptedBy, userID) }
func (t Thread) HasArchived(userID string) bool { return containsID(t.ArchivedBy, userID) }
func (t Thread) HasMuted(userID string) bool    { return containsID(t.MutedBy, userID) }

// StateFor resolves the thread state from the point of view of userID.
// Archive only applies once the user has accepted; a pending request stays pending.
func (t Thread) StateFor(userID string) ThreadState {
	switch {
	case !t.HasAccepted(userID):
		return ThreadPending
	case t.HasArchived(userID):
		return ThreadArchived
	default:
		return ThreadActive
	}
}

// Clone returns a deep copy so callers never share set slices with a store.
func (t Thread) Clone() Thread {
	out := t
	out.ParticipantIDs = cloneIDs(t.ParticipantIDs)
	out.AcceptedBy = cloneIDs(t.AcceptedBy)
	out.ArchivedBy = cloneIDs(t.ArchivedBy)
	out.MutedBy = cloneIDs(t.MutedBy)
	out.ContactedBy = cloneIDs(t.ContactedBy)
	if t.LastMessageAt != nil {
		ts := *t.LastMessageAt
		out.LastMessageAt = &ts
	}
	return out
}

// LastActivity is the timestamp used to sort thread listings.
func (t Thread) LastActivity() time.Time {
	if t.LastMessageAt != nil && t.LastMessageAt.After(t.UpdatedAt) {
		return *t.LastMessageAt
	}
	return t.UpdatedAt
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func cloneIDs(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
