package auth

import "github.com/zeebo/blake3"

// FakePublicSalt fabricates a stable public salt for a username that has no
// account, so a login probe cannot distinguish "no such user" from "real
// user, wrong phase" by salt shape alone. Binding to serverSecret ties the
// fake salt to this server instance; determinism means the same username
// always sees the same fake salt.
func FakePublicSalt(username string, serverSecret []byte) [32]byte {
	h := blake3.New()
	h.Write([]byte(username))
	h.Write([]byte{0x20}) // the spec's "‖" join is a single separating byte
	h.Write(serverSecret)

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
