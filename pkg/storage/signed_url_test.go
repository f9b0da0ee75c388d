package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, expiresAt, err := signer.Generate("file-1", "p1/doc con espacios.pdf")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	resourceID, relPath, parsedExp, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "file-1", resourceID)
	assert.Equal(t, "p1/doc con espacios.pdf", relPath)
	assert.WithinDuration(t, expiresAt, parsedExp, time.Second)
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, _, err := signer.Generate("file-1", "p1/doc.pdf")
	require.NoError(t, err)

	// Swapping the resource ID invalidates the signature.
	parts := strings.Split(token, ".")
	parts[0] = "file-2"
	_, _, _, err = signer.Parse(strings.Join(parts, "."), false)
	require.Error(t, err)

	_, _, _, err = signer.Parse(token+"x", false)
	require.Error(t, err)

	other := NewSignedURLSigner("another-secret", time.Hour)
	_, _, _, err = other.Parse(token, false)
	require.Error(t, err)
}

func TestSignedURLExpiry(t *testing.T) {
	signer := &SignedURLSigner{secret: []byte("secret"), ttl: -time.Minute}

	token, _, err := signer.Generate("file-1", "p1/doc.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)

	resourceID, _, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "file-1", resourceID)
}
