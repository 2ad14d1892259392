package model

import (
	"gopkg.in/yaml.v2"
)

// FormatDescriptor records, at the store root, the configuration every
// stored object was written under. A verifier reading objects under an
// incompatible hashing or chunking configuration must refuse to interpret
// them rather than silently mis-verify.
type FormatDescriptor struct {
	Version    uint64 `json:"version" yaml:"version"`
	HashScheme string `json:"hashScheme" yaml:"hashScheme"`
	Polynomial uint64 `json:"polynomial" yaml:"polynomial"`
	MinChunk   uint   `json:"minChunk" yaml:"minChunk"`
	MaxChunk   uint   `json:"maxChunk" yaml:"maxChunk"`
	_          struct{}
}

// HashSchemeBlake2b256 is the only supported hash scheme
const HashSchemeBlake2b256 = "blake2b-256"

// Serialize the format descriptor
func (f *FormatDescriptor) Serialize() ([]byte, error) {
	return yaml.Marshal(f)
}

// UnmarshalFormat decodes a format descriptor
func UnmarshalFormat(data []byte) (*FormatDescriptor, error) {
	var f FormatDescriptor
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Version == 0 || f.Version > CurrentStoreVersion {
		return nil, ErrVersionMismatch
	}
	return &f, nil
}
