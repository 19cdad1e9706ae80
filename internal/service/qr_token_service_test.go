package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/campus-events-api/pkg/errors"
)

func TestQRTokenExpiryBoundary(t *testing.T) {
	issued := utc(2025, 1, 10, 13, 0)
	clock := newTestClock(issued)
	tokens := NewQRTokenService("qr-secret", 10*time.Minute, clock)

	token, expiresAt, err := tokens.Sign("evt-1")
	require.NoError(t, err)
	assert.Equal(t, issued.Add(10*time.Minute), expiresAt)

	clock.Set(expiresAt.Add(-time.Second))
	eventID, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", eventID)

	clock.Set(expiresAt.Add(time.Second))
	_, err = tokens.Verify(token)
	assert.ErrorIs(t, err, appErrors.ErrInvalidQRCode)
}

func TestQRTokenRejectsOtherSecretsAndCredentials(t *testing.T) {
	clock := newTestClock(utc(2025, 1, 10, 13, 0))
	tokens := NewQRTokenService("qr-secret", 10*time.Minute, clock)

	forged, _, err := NewQRTokenService("other", 10*time.Minute, clock).Sign("evt-1")
	require.NoError(t, err)
	_, err = tokens.Verify(forged)
	assert.ErrorIs(t, err, appErrors.ErrInvalidQRCode)

	// A login credential signed with the same secret is not an attendance token.
	credential, _, err := NewTokenService(TokenConfig{Secret: "qr-secret"}, clock).Issue(studentAda)
	require.NoError(t, err)
	_, err = tokens.Verify(credential)
	assert.ErrorIs(t, err, appErrors.ErrInvalidQRCode)
}
