package booking

import (
	"crypto/sha256"

	"github.com/google/uuid"
)

// orderNumberChars excludes ambiguous characters (0/O, 1/I) so the number can
// be read over the phone.
const orderNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const orderNumberLength = 8

// OrderNumber derives the human-shareable order number for a booking ID.
// It is deterministic: the same booking ID always yields the same number, so
// a replayed creation never mints a second number. The bookings table keeps a
// unique index on the column as the collision backstop.
func OrderNumber(id uuid.UUID) string {
	sum := sha256.Sum256(id[:])
	out := make([]byte, orderNumberLength)
	for i := range out {
		out[i] = orderNumberChars[int(sum[i])%len(orderNumberChars)]
	}
	return "RV-" + string(out)
}
