package store

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID mints a player or room identifier. ULIDs sort by creation time,
// so store dumps and log lines read in join order.
func NewID() string {
	return ulid.Make().String()
}

// NewToken mints the opaque reconnect credential handed out on first
// join. Tokens carry no relation to the player id.
func NewToken() string {
	return uuid.NewString()
}
