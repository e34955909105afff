package validate

import (
	"errors"
	"fmt"
	"regexp"
)

// Descriptor validation errors
var (
	ErrInvalidDescriptorUUID = errors.New("invalid descriptor uuid")
	ErrInvalidChecksum       = errors.New("invalid checksum")
	ErrInvalidSID            = errors.New("invalid session id")
)

// Descriptor UUIDs and checksums both come back from the index as hex
// digests of the image content. Engines have used sha1 and md5, so any
// even-length hex string in that range is accepted.
var hexDigestPattern = regexp.MustCompile(`^[0-9a-fA-F]{32,64}$`)

// DescriptorUUID validates a descriptor UUID as used in refine label sets.
func DescriptorUUID(s string) (string, error) {
	if s == "" {
		return "", ErrEmpty
	}
	if !hexDigestPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDescriptorUUID, s)
	}
	return s, nil
}

// DescriptorUUIDs validates every element of a label set.
// Returns the set unchanged when all elements are valid.
func DescriptorUUIDs(uuids []string) ([]string, error) {
	for _, u := range uuids {
		if _, err := DescriptorUUID(u); err != nil {
			return nil, err
		}
	}
	return uuids, nil
}

// Engine sids are uuid-like opaque tokens. Anything outside this charset
// would be an injection attempt, not a real sid.
var sidPattern = regexp.MustCompile(`^[A-Za-z0-9\-_]{1,128}$`)

// SID validates a session identifier as used in paths and query strings.
func SID(s string) (string, error) {
	if s == "" {
		return "", ErrEmpty
	}
	if !sidPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSID, s)
	}
	return s, nil
}

// Checksum validates an image content checksum.
func Checksum(s string) (string, error) {
	if s == "" {
		return "", ErrEmpty
	}
	if !hexDigestPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidChecksum, s)
	}
	return s, nil
}
