package protocol

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashModule(t *testing.T) {
	data := []byte("not actually wasm, just bytes")
	want := sha256.Sum256(data)

	got := HashModule(data)

	assert.Equal(t, hex.EncodeToString(want[:]), got)
	assert.Len(t, got, 64)
}

func TestHashModule_Deterministic(t *testing.T) {
	data := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	a := HashModule(data)
	b := HashModule(data)

	assert.Equal(t, a, b)
}

func TestHashModule_DifferentInputsDifferentHashes(t *testing.T) {
	a := HashModule([]byte("module a"))
	b := HashModule([]byte("module b"))

	assert.NotEqual(t, a, b)
}
