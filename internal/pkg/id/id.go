package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. The entropy comes from crypto/rand, so
// values double as unguessable handles (submit ids, claim ids, session ids).
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// Valid reports whether s is a well-formed ULID handle.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
