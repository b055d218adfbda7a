package model

import (
    "crypto/rand"
    "encoding/hex"
)

// IDLength is the length of every entity identifier: 12 random bytes
// rendered as lowercase hex.
const IDLength = 24

// NewID returns a fresh 24-character hex identifier.
func NewID() (string, error) {
    b := make([]byte, IDLength/2)
    if _, err := rand.Read(b); err != nil {
        return "", err
    }
    return hex.EncodeToString(b), nil
}

// ValidID reports whether s is a well-formed identifier.  Upper-case hex is
// rejected so that ids compare equal byte for byte in the database.
func ValidID(s string) bool {
    if len(s) != IDLength {
        return false
    }
    for i := 0; i < len(s); i++ {
        c := s[i]
        if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
            return false
        }
    }
    return true
}
