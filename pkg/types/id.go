package types

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// PersonPrefix is the id prefix of Person records.
const PersonPrefix = "person"

// idSuffixLen is the number of hex characters after the kind prefix.
const idSuffixLen = 8

var idSuffix = regexp.MustCompile(`^[a-f0-9]{8}$`)

// NewID returns a fresh "{kind}-{8 hex}" identifier.
func NewID(k Kind) string {
	return newPrefixedID(string(k))
}

// NewPersonID returns a fresh "person-{8 hex}" identifier.
func NewPersonID() string {
	return newPrefixedID(PersonPrefix)
}

func newPrefixedID(prefix string) string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + "-" + hex[:idSuffixLen]
}

// ValidateID returns ErrInvalidID unless id has the form "{kind}-{8 hex}".
func ValidateID(id string, k Kind) error {
	prefix, suffix, ok := strings.Cut(id, "-")
	if !ok || prefix != string(k) || !idSuffix.MatchString(suffix) {
		return fmt.Errorf("%w: %q is not a %s id", ErrInvalidID, id, k)
	}
	return nil
}

// KindOf infers the entity kind from an id prefix.
func KindOf(id string) (Kind, bool) {
	prefix, suffix, ok := strings.Cut(id, "-")
	if !ok || !idSuffix.MatchString(suffix) {
		return "", false
	}
	k := Kind(prefix)
	return k, k.Valid()
}
