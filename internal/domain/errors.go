package domain

import "fmt"

// UnavailableKind classifies why a video cannot be served. The set mirrors
// the reasons the upstream service reports; the transport layer never
// produces these itself, it only carries them through to callers.
type UnavailableKind string

const (
	KindAgeRestricted UnavailableKind = "age_restricted"
	KindPrivate       UnavailableKind = "private"
	KindMembersOnly   UnavailableKind = "members_only"
	KindRegionBlocked UnavailableKind = "region_blocked"
	KindLoginRequired UnavailableKind = "login_required"
	KindBotDetection  UnavailableKind = "bot_detection"
	KindUnknown       UnavailableKind = "unknown"
)

// UnavailableError carries the video identifier and a human-readable reason
// for any video the server refuses to serve.
type UnavailableError struct {
	VideoID string
	Kind    UnavailableKind
	Reason  string
}

func (e *UnavailableError) Error() string {
	switch e.Kind {
	case KindAgeRestricted:
		return fmt.Sprintf("%s is age restricted and can't be accessed without logging in", e.VideoID)
	case KindPrivate:
		return fmt.Sprintf("%s is a private video", e.VideoID)
	case KindMembersOnly:
		return fmt.Sprintf("%s is a members-only video", e.VideoID)
	case KindRegionBlocked:
		return fmt.Sprintf("%s is not available in your region", e.VideoID)
	case KindLoginRequired:
		return fmt.Sprintf("%s requires login to view: %s", e.VideoID, e.Reason)
	case KindBotDetection:
		return fmt.Sprintf("%s request was detected as coming from a bot", e.VideoID)
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s is unavailable: %s", e.VideoID, e.Reason)
	}
	return fmt.Sprintf("%s is unavailable", e.VideoID)
}

func NewUnavailable(videoID string, kind UnavailableKind, reason string) *UnavailableError {
	return &UnavailableError{VideoID: videoID, Kind: kind, Reason: reason}
}
