package acp

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion identifies a major version of the protocol.
//
// The version is only bumped for breaking changes. Non-breaking changes are
// introduced via capabilities instead.
type ProtocolVersion uint16

const (
	// ProtocolVersionV0 was a pre-release version that shouldn't be used in
	// production. It is the fallback for any version that cannot be parsed as
	// a number and should likely be treated as unsupported.
	ProtocolVersionV0 ProtocolVersion = 0
	// ProtocolVersionV1 is version 1 of the protocol.
	ProtocolVersionV1 ProtocolVersion = 1
	// ProtocolVersionLatest is the latest version supported by this module.
	ProtocolVersionLatest = ProtocolVersionV1
)

// UnmarshalJSON accepts a version number, or a string for compatibility with
// pre-release versions of the protocol that used semver strings. All string
// versions are considered version 0.
func (v *ProtocolVersion) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = ProtocolVersionV0
		return nil
	}
	var n uint64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid protocol version %s", data)
	}
	if n > 65535 {
		return fmt.Errorf("protocol version %d is too large", n)
	}
	*v = ProtocolVersion(n)
	return nil
}
