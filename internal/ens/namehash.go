package ens

import (
	"fmt"
	"strings"

	"github.com/adraffy/go-ens-normalize/ensip15"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// reverseSuffix is the ENS namespace holding primary names
const reverseSuffix = "addr.reverse"

// maxLabelLength is the longest label a DNS wire name can carry
const maxLabelLength = 255

// Normalize maps name to its canonical ENSIP-15 form.
func Normalize(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	for _, label := range strings.Split(trimmed, ".") {
		if label == "" {
			return "", fmt.Errorf("%w: %q has an empty label", ErrInvalidName, name)
		}
	}

	normalized, err := ensip15.Shared().Normalize(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidName, name, err)
	}
	return normalized, nil
}

// Namehash computes the EIP-137 node of an already normalized name.
func Namehash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}

	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), labelHash)
	}
	return node
}

// DNSEncode returns name in DNS wire format, as the universal resolver expects it
func DNSEncode(name string) ([]byte, error) {
	if name == "" {
		return []byte{0}, nil
	}

	out := make([]byte, 0, len(name)+2)
	for _, label := range strings.Split(name, ".") {
		if label == "" || len(label) > maxLabelLength {
			return nil, fmt.Errorf("%w: label %q cannot be encoded", ErrInvalidName, label)
		}
		out = append(out, byte(len(label)))
		out = append(out, label...)
	}
	return append(out, 0), nil
}

// ReverseName returns the name under addr.reverse that stores the primary name of addr
func ReverseName(addr common.Address) string {
	return strings.ToLower(strings.TrimPrefix(addr.Hex(), "0x")) + "." + reverseSuffix
}
