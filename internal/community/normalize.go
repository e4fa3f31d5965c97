package community

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName trims surrounding whitespace and applies NFC normalization
// so that visually identical names compare equal in storage.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// NormalizeActor applies the same normalization to an actor identity.
func NormalizeActor(a ActorID) ActorID {
	return ActorID(norm.NFC.String(strings.TrimSpace(string(a))))
}

// Normalize returns a copy of c with its text fields normalized.
func Normalize(c Community) Community {
	c.ID = strings.TrimSpace(c.ID)
	c.Name = NormalizeName(c.Name)
	c.City = NormalizeName(c.City)
	c.Region = NormalizeName(c.Region)
	c.PostalCode = strings.TrimSpace(c.PostalCode)
	c.CreatedBy = NormalizeActor(c.CreatedBy)
	return c
}
