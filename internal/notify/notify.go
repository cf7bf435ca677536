// Package notify shows desktop notifications for playback changes.
package notify

import (
	"errors"
	"math"
	"time"
)

// Urgency is the freedesktop urgency level carried in the hints.
type Urgency byte

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyCritical
)

// ErrUnavailable is returned by Dial when no notification server can be
// reached.
var ErrUnavailable = errors.New("desktop notifications unavailable")

// Message is one desktop notification.
type Message struct {
	Summary  string
	Body     string
	Icon     string        // image path or icon name
	Expire   time.Duration // 0 lets the server decide
	Replaces uint32        // id of a shown message to update in place
	Urgency  Urgency
}

// Sender shows messages and returns the id the server gave them.
type Sender interface {
	Send(m Message) (uint32, error)
}

// expireMillis converts an expiry to the protocol's timeout, where -1
// means the server default.
func expireMillis(d time.Duration) int32 {
	if d <= 0 {
		return -1
	}
	return int32(min(d.Milliseconds(), math.MaxInt32))
}
