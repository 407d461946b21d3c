package proto

import gonanoid "github.com/matoous/go-nanoid/v2"

const (
	idPrefix   = "rtv_"
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	idLength   = 16
)

// ID returns a new session identifier.
func ID() string {
	return idPrefix + gonanoid.MustGenerate(idAlphabet, idLength)
}
