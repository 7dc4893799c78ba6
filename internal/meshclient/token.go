package meshclient

import (
	"encoding/hex"

	"github.com/crushmatch/matchd/internal/cryptoutil"
)

// Token computes the secret value a client submits to the server's match
// table for one name ordering on one peer link. nameConcat is the exact,
// whitespace-preserving concatenation of two canonicalised names (e.g. own
// name then crush name, or the reverse); sessionKey is the AES session key
// of the peer link the token is bound to, so a token computed for one peer
// can never be replayed to fake a match against a different one.
//
// The session key is folded in as lowercase hex with no separators before
// hashing, which is the one canonical encoding both peers on a link must
// agree on for their tokens to ever compare equal.
func Token(nameConcat string, sessionKey []byte) []byte {
	material := nameConcat + hex.EncodeToString(sessionKey)
	return cryptoutil.SHA256([]byte(material))
}
