package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_UnavailableError_Messages(t *testing.T) {
	cases := []struct {
		kind UnavailableKind
		want string
	}{
		{KindAgeRestricted, "vid1 is age restricted and can't be accessed without logging in"},
		{KindPrivate, "vid1 is a private video"},
		{KindMembersOnly, "vid1 is a members-only video"},
		{KindRegionBlocked, "vid1 is not available in your region"},
		{KindBotDetection, "vid1 request was detected as coming from a bot"},
	}
	for _, tc := range cases {
		err := NewUnavailable("vid1", tc.kind, "")
		assert.Equal(t, tc.want, err.Error())
	}

	assert.Equal(t, "vid1 requires login to view: sign in first",
		NewUnavailable("vid1", KindLoginRequired, "sign in first").Error())
	assert.Equal(t, "vid1 is unavailable: gone",
		NewUnavailable("vid1", KindUnknown, "gone").Error())
	assert.Equal(t, "vid1 is unavailable",
		NewUnavailable("vid1", KindUnknown, "").Error())
}
