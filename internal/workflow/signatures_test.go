package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"eboard/api/internal/rbac"
)

func TestCanUserSign(t *testing.T) {
	required := []RequiredSigner{{Role: "Chairman", Name: "A"}, {Role: "Secretary", Name: "B"}}

	assert.True(t, CanUserSign(chairman, required, nil))
	assert.False(t, CanUserSign(member, required, nil), "no matching entry")
	assert.False(t, CanUserSign(chairman, required, []Signer{{Role: "chairman", Name: "a"}}))

	impostor := rbac.Actor{UserID: "x", Name: "A", Roles: []rbac.Role{rbac.RoleBoardMember}}
	assert.False(t, CanUserSign(impostor, required, nil), "name without role")
}

func TestSignerSlotReportsAlreadySigned(t *testing.T) {
	required := []RequiredSigner{{Role: "chairman", Name: "A"}}
	_, ok, already := SignerSlot(chairman, required, []Signer{{Role: "Chairman", Name: "A"}})
	assert.False(t, ok)
	assert.True(t, already)

	_, ok, already = SignerSlot(member, required, nil)
	assert.False(t, ok)
	assert.False(t, already)
}

func TestSignerPinnedToUser(t *testing.T) {
	required := []RequiredSigner{{Role: "chairman", Name: "A", UserID: "u-other"}}
	assert.False(t, CanUserSign(chairman, required, nil))
	required[0].UserID = chairman.UserID
	assert.True(t, CanUserSign(chairman, required, nil))
}

func TestIsFullySigned(t *testing.T) {
	required := []RequiredSigner{{Role: "Chairman", Name: "A"}, {Role: "Secretary", Name: "B"}}
	signed := []Signer{{Role: "chairman", Name: "A"}}

	assert.False(t, IsFullySigned(required, signed))
	assert.Equal(t, []RequiredSigner{{Role: "Secretary", Name: "B"}}, MissingSigners(required, signed))

	signed = append(signed, Signer{Role: "Secretary", Name: "b"})
	assert.True(t, IsFullySigned(required, signed))
	assert.True(t, IsFullySigned(nil, nil))
}

func TestSignatureHashVerification(t *testing.T) {
	secret := []byte("s3cret")
	at := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	hash := SignatureHash(secret, "min_1", 2, "Chairman", "A", at)

	assert.Len(t, hash, 64)
	assert.Equal(t, hash, SignatureHash(secret, "min_1", 2, "chairman", "a", at))
	assert.True(t, VerifySignatureHash(secret, hash, "min_1", 2, "Chairman", "A", at))
	assert.False(t, VerifySignatureHash(secret, hash, "min_1", 3, "Chairman", "A", at), "different version")
	assert.False(t, VerifySignatureHash([]byte("other"), hash, "min_1", 2, "Chairman", "A", at))
}

func TestParseSignatureMethod(t *testing.T) {
	m, ok := ParseSignatureMethod(" PIN ")
	assert.True(t, ok)
	assert.Equal(t, MethodPIN, m)
	_, ok = ParseSignatureMethod("stamp")
	assert.False(t, ok)
}
