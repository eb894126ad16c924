package domain

// Principal is the authenticated identity resolved at the request boundary.
// The ID is the hex-encoded wallet public key the client proved possession
// of; the session nonce ties every token minted for this login together.
type Principal struct {
	ID           string `json:"id"`
	SessionNonce string `json:"-"`
}
