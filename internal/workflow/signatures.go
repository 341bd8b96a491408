package workflow

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"eboard/api/internal/rbac"
)

type SignatureMethod string

const (
	MethodDigital   SignatureMethod = "digital"
	MethodBiometric SignatureMethod = "biometric"
	MethodPIN       SignatureMethod = "pin"
)

func ParseSignatureMethod(value string) (SignatureMethod, bool) {
	switch m := SignatureMethod(strings.ToLower(strings.TrimSpace(value))); m {
	case MethodDigital, MethodBiometric, MethodPIN:
		return m, true
	default:
		return "", false
	}
}

// RequiredSigner is a role/name pair that must sign before publication.
// UserID, when set, pins the slot to one account.
type RequiredSigner struct {
	Role   string `json:"role"`
	Name   string `json:"name"`
	UserID string `json:"userId,omitempty"`
}

// Signer identifies who produced an existing signature.
type Signer struct {
	Role string
	Name string
}

func sameSigner(role, name string, other Signer) bool {
	return strings.EqualFold(strings.TrimSpace(role), strings.TrimSpace(other.Role)) &&
		strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(other.Name))
}

func isSigned(required RequiredSigner, signatures []Signer) bool {
	for _, sig := range signatures {
		if sameSigner(required.Role, required.Name, sig) {
			return true
		}
	}
	return false
}

func matchesActor(required RequiredSigner, actor rbac.Actor) bool {
	if required.UserID != "" && required.UserID != actor.UserID {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(required.Name), strings.TrimSpace(actor.Name)) {
		return false
	}
	for _, role := range actor.Roles {
		if strings.EqualFold(strings.TrimSpace(required.Role), string(role)) {
			return true
		}
	}
	return false
}

// SignerSlot returns the first unsigned required-signer entry the actor can
// fill. alreadySigned is true when the actor matches at least one entry but
// every matching entry is already signed.
func SignerSlot(actor rbac.Actor, required []RequiredSigner, signatures []Signer) (slot RequiredSigner, ok bool, alreadySigned bool) {
	matched := false
	for _, r := range required {
		if !matchesActor(r, actor) {
			continue
		}
		matched = true
		if !isSigned(r, signatures) {
			return r, true, false
		}
	}
	return RequiredSigner{}, false, matched
}

func CanUserSign(actor rbac.Actor, required []RequiredSigner, signatures []Signer) bool {
	_, ok, _ := SignerSlot(actor, required, signatures)
	return ok
}

// MissingSigners lists required signers without a matching signature, in
// configuration order.
func MissingSigners(required []RequiredSigner, signatures []Signer) []RequiredSigner {
	missing := make([]RequiredSigner, 0)
	for _, r := range required {
		if !isSigned(r, signatures) {
			missing = append(missing, r)
		}
	}
	return missing
}

func IsFullySigned(required []RequiredSigner, signatures []Signer) bool {
	return len(MissingSigners(required, signatures)) == 0
}

// SignatureHash derives the opaque signature token. The same inputs always
// produce the same token, which is what makes later verification possible.
func SignatureHash(secret []byte, minutesID string, minutesVersion int, signerRole, signerName string, signedAt time.Time) string {
	mac := hmac.New(sha256.New, secret)
	for _, part := range []string{
		minutesID,
		strconv.Itoa(minutesVersion),
		strings.ToLower(strings.TrimSpace(signerRole)),
		strings.ToLower(strings.TrimSpace(signerName)),
		signedAt.UTC().Format(time.RFC3339Nano),
	} {
		_, _ = mac.Write([]byte(part))
		_, _ = mac.Write([]byte{0})
	}
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifySignatureHash(secret []byte, hash, minutesID string, minutesVersion int, signerRole, signerName string, signedAt time.Time) bool {
	expected := SignatureHash(secret, minutesID, minutesVersion, signerRole, signerName, signedAt)
	return hmac.Equal([]byte(expected), []byte(hash))
}
