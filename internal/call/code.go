package call

import (
	"crypto/rand"
	"encoding/hex"
)

// newCallCode returns an unguessable rendezvous code. Knowing the code is
// how a joiner finds the offer, so codes come from crypto/rand, not from
// anything derivable. Uniqueness is enforced at write time by the store's
// pending-code constraint, not here.
func newCallCode() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
