package dbengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proofrock/sqliterg/internal/domain"
)

func TestMatchCredentialsPlainWinsOverHashed(t *testing.T) {
	// Both a plain password and a hashed password are configured for the
	// same entry; spec §4.7 says the plaintext one is authoritative, so only
	// it should authenticate.
	creds := []domain.Credential{
		{User: "alice", Password: "plain-secret", HashedPassword: sha256Hex("hashed-secret")},
	}
	assert.True(t, matchCredentials(creds, "alice", "plain-secret"))
	assert.False(t, matchCredentials(creds, "alice", "hashed-secret"))
	assert.False(t, matchCredentials(creds, "alice", "anything-else"))
}

func TestMatchCredentialsPlainOnly(t *testing.T) {
	creds := []domain.Credential{{User: "bob", Password: "s3cret"}}
	assert.True(t, matchCredentials(creds, "bob", "s3cret"))
	assert.False(t, matchCredentials(creds, "bob", "nope"))
	assert.False(t, matchCredentials(creds, "carol", "s3cret"))
}

func TestMatchCredentialsHashedOnly(t *testing.T) {
	creds := []domain.Credential{{User: "dave", HashedPassword: sha256Hex("topsecret")}}
	assert.True(t, matchCredentials(creds, "dave", "topsecret"))
	assert.False(t, matchCredentials(creds, "dave", "wrong"))
}

func TestNewAuthGateRejectsCredentialWithNoSecret(t *testing.T) {
	_, err := newAuthGate(&domain.Auth{
		Mode:          domain.AuthModeInline,
		ByCredentials: []domain.Credential{{User: "eve"}},
	})
	require.Error(t, err)
}

func TestNewAuthGateRequiresBackend(t *testing.T) {
	_, err := newAuthGate(&domain.Auth{Mode: domain.AuthModeInline})
	require.Error(t, err)
}

func TestNewAuthGateNilConfigDisablesAuth(t *testing.T) {
	gate, err := newAuthGate(nil)
	require.NoError(t, err)
	assert.Nil(t, gate)
}

func TestWebServiceAuthNilAlwaysPasses(t *testing.T) {
	ok, _ := WebServiceAuth(nil, "")
	assert.True(t, ok)
}

func TestWebServiceAuthPlainToken(t *testing.T) {
	token := "ciao"
	ws := &domain.WebService{AuthToken: &token}

	ok, status := WebServiceAuth(ws, "ciao")
	assert.True(t, ok)
	assert.Equal(t, 401, status)

	ok, _ = WebServiceAuth(ws, "wrong")
	assert.False(t, ok)

	ok, _ = WebServiceAuth(ws, "")
	assert.False(t, ok)
}

func TestWebServiceAuthHashedToken(t *testing.T) {
	hashed := sha256Hex("s3cr3t")
	ws := &domain.WebService{HashedAuthToken: &hashed}

	ok, _ := WebServiceAuth(ws, "s3cr3t")
	assert.True(t, ok)

	ok, _ = WebServiceAuth(ws, "wrong")
	assert.False(t, ok)
}

func TestWebServiceAuthCustomErrorCode(t *testing.T) {
	code := 403
	token := "x"
	ws := &domain.WebService{AuthToken: &token, AuthErrorCode: &code}

	_, status := WebServiceAuth(ws, "wrong")
	assert.Equal(t, 403, status)
}
