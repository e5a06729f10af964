package db

import (
	"fmt"
	"strings"
)

// KeySeparator joins the parts of signal and match ids. User and arena
// ids must not contain it or two different pairs could share a key.
const KeySeparator = "_"

// ValidateKeyPart rejects ids that cannot be embedded in a composite key.
func ValidateKeyPart(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("id is required")
	case strings.Contains(id, KeySeparator):
		return fmt.Errorf("id %q must not contain %q", id, KeySeparator)
	case strings.Contains(id, "/"):
		return fmt.Errorf("id %q must not contain %q", id, "/")
	}
	return nil
}

// SignalID is signals/{arenaId}_{senderId}_{receiverId}. Ordered.
func SignalID(arenaID, senderID, receiverID string) string {
	return arenaID + KeySeparator + senderID + KeySeparator + receiverID
}

// MatchID is matches/{arenaId}_{sortedPair}. The sort makes the key
// independent of who signaled first.
func MatchID(arenaID, userA, userB string) string {
	a, b := SortPair(userA, userB)
	return arenaID + KeySeparator + a + KeySeparator + b
}

// ActiveUserID keys the per-arena activation record.
func ActiveUserID(arenaID, userID string) string {
	return arenaID + "/" + userID
}

// SortPair returns the two ids in ascending order.
func SortPair(x, y string) (string, string) {
	if strings.Compare(x, y) > 0 {
		return y, x
	}
	return x, y
}
