package models

// NotificationKind names an alert category gated by a per-user preference.
type NotificationKind string

const (
	KindNewRecruiterMessage      NotificationKind = "new_recruiter_message"
	KindRecruiterMessageFollowUp NotificationKind = "recruiter_message_follow_up"
	KindEndorsementReceived      NotificationKind = "endorsement_received"
	KindProfileViewed            NotificationKind = "profile_viewed"
)

// KnownKinds lists every kind a preference can be stored for.
var KnownKinds = []NotificationKind{
	KindNewRecruiterMessage,
	KindRecruiterMessageFollowUp,
	KindEndorsementReceived,
	KindProfileViewed,
}

// IsKnownKind reports whether kind is one of KnownKinds.
func IsKnownKind(kind NotificationKind) bool {
	for _, k := range KnownKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Preferences maps a notification kind to whether the user wants it.
type Preferences map[NotificationKind]bool

// Resolve fills every known kind missing from p with true.
// The result is a new map; p is not modified.
func (p Preferences) Resolve() Preferences {
	out := make(Preferences, len(KnownKinds))
	for _, k := range KnownKinds {
		out[k] = true
	}
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Enabled reports the resolved value for kind.
func (p Preferences) Enabled(kind NotificationKind) bool {
	if v, ok := p[kind]; ok {
		return v
	}
	return true
}
