package dump

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("dump: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
	// Every nested code object costs a few levels; the default limit of
	// 32 is reached by ordinary closures inside classes.
	dm, err := cbor.DecOptions{MaxNestedLevels: 1024}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("dump: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

// MarshalCBOR serializes a code object to canonical CBOR.
func MarshalCBOR(code *bytecode.CodeObject, v *bytecode.Version) ([]byte, error) {
	return cborEncMode.Marshal(New(code, v))
}

// UnmarshalCBOR deserializes a code object from CBOR.
func UnmarshalCBOR(data []byte) (*bytecode.CodeObject, *bytecode.Version, error) {
	var f File
	if err := cborDecMode.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("dump: unmarshal cbor: %w", err)
	}
	return f.Resolve()
}

// MarshalYAML serializes a code object to YAML.
func MarshalYAML(code *bytecode.CodeObject, v *bytecode.Version) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(New(code, v)); err != nil {
		return nil, fmt.Errorf("dump: marshal yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("dump: marshal yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalYAML deserializes a code object from YAML.
func UnmarshalYAML(data []byte) (*bytecode.CodeObject, *bytecode.Version, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("dump: unmarshal yaml: %w", err)
	}
	return f.Resolve()
}

// IsYAML reports whether path names a YAML dump by its extension.
func IsYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// ReadFile loads a dump, choosing the codec by extension.
func ReadFile(path string) (*bytecode.CodeObject, *bytecode.Version, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var code *bytecode.CodeObject
	var v *bytecode.Version
	if IsYAML(path) {
		code, v, err = UnmarshalYAML(data)
	} else {
		code, v, err = UnmarshalCBOR(data)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return code, v, nil
}

// WriteFile stores a dump, choosing the codec by extension.
func WriteFile(path string, code *bytecode.CodeObject, v *bytecode.Version) error {
	var data []byte
	var err error
	if IsYAML(path) {
		data, err = MarshalYAML(code, v)
	} else {
		data, err = MarshalCBOR(code, v)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
