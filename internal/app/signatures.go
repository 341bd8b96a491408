package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"eboard/api/internal/authpw"
	"eboard/api/internal/rbac"
	"eboard/api/internal/store"
	"eboard/api/internal/util"
	"eboard/api/internal/workflow"

	"github.com/google/uuid"
)

type AddSignatureInput struct {
	SignatureMethod string `json:"signatureMethod"`
	PIN             string `json:"pin"`
}

type SignatureList struct {
	Signatures      []SignatureView           `json:"signatures"`
	RequiredSigners []workflow.RequiredSigner `json:"requiredSigners"`
	Missing         []workflow.RequiredSigner `json:"missing"`
	FullySigned     bool                      `json:"fullySigned"`
	CanSign         bool                      `json:"canSign"`
}

// AddSignature records the actor's signature on approved minutes. It never
// changes status; publication re-checks completeness.
func (s *Service) AddSignature(ctx context.Context, actor rbac.Actor, minutesID string, input AddSignatureInput) (SignatureView, error) {
	m, _, err := s.loadMutable(ctx, minutesID)
	if err != nil {
		return SignatureView{}, err
	}
	required, err := s.store.ListRequiredSigners(ctx, m.MeetingID)
	if err != nil {
		return SignatureView{}, err
	}
	existing, err := s.store.ListSignatures(ctx, m.ID)
	if err != nil {
		return SignatureView{}, err
	}

	// One signature per required (role, name) slot; a user holding two slots
	// signs twice.
	slot, ok, alreadySigned := workflow.SignerSlot(actor, toWorkflowSigners(required), signersOf(existing))
	if alreadySigned {
		return SignatureView{}, workflow.ErrAlreadySigned
	}
	if workflow.Status(m.Status) != workflow.StatusApproved {
		return SignatureView{}, domainError(http.StatusConflict, "INVALID_TRANSITION", "Minutes can only be signed once approved", map[string]any{"status": m.Status})
	}
	if !ok {
		return SignatureView{}, errForbidden("You are not a required signer for these minutes")
	}

	method, valid := workflow.ParseSignatureMethod(input.SignatureMethod)
	if !valid {
		return SignatureView{}, errValidation("signatureMethod must be one of digital, biometric, pin")
	}
	if method == workflow.MethodPIN {
		user, err := s.store.GetUserByID(ctx, actor.UserID)
		if err != nil {
			return SignatureView{}, err
		}
		if err := authpw.VerifySigningPIN(user, input.PIN); err != nil {
			return SignatureView{}, errForbidden("Signing PIN does not match")
		}
	}

	signedAt := s.now().Truncate(time.Microsecond)
	sig := store.MinutesSignature{
		ID:              util.NewID("sig"),
		MinutesID:       m.ID,
		MinutesVersion:  m.Version,
		SignerRole:      slot.Role,
		SignerName:      slot.Name,
		SignerUserID:    actor.UserID,
		SignatureMethod: string(method),
		SignedAt:        signedAt,
	}
	sig.SignatureHash = workflow.SignatureHash([]byte(s.cfg.SigningSecret), sig.MinutesID, sig.MinutesVersion, sig.SignerRole, sig.SignerName, signedAt)
	if method == workflow.MethodDigital {
		cert := uuid.NewString()
		sig.CertificateID = &cert
	}

	event := s.newEvent(m, "signed", actor, map[string]any{
		"signatureId": sig.ID,
		"role":        sig.SignerRole,
		"method":      sig.SignatureMethod,
		"version":     sig.MinutesVersion,
	})
	if err := s.store.InsertSignature(ctx, sig, event); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return SignatureView{}, workflow.ErrAlreadySigned
		}
		return SignatureView{}, err
	}
	return signatureView(sig), nil
}

func (s *Service) ListSignatures(ctx context.Context, actor rbac.Actor, minutesID string) (SignatureList, error) {
	if err := authorize(actor, rbac.PermMinutesRead); err != nil {
		return SignatureList{}, err
	}
	m, err := s.loadMinutes(ctx, minutesID)
	if err != nil {
		return SignatureList{}, err
	}
	required, err := s.store.ListRequiredSigners(ctx, m.MeetingID)
	if err != nil {
		return SignatureList{}, err
	}
	signatures, err := s.store.ListSignatures(ctx, m.ID)
	if err != nil {
		return SignatureList{}, err
	}

	slots := toWorkflowSigners(required)
	signed := signersOf(signatures)
	out := SignatureList{
		Signatures:      make([]SignatureView, 0, len(signatures)),
		RequiredSigners: slots,
		Missing:         workflow.MissingSigners(slots, signed),
		FullySigned:     workflow.IsFullySigned(slots, signed),
		CanSign:         workflow.Status(m.Status) == workflow.StatusApproved && workflow.CanUserSign(actor, slots, signed),
	}
	for _, sig := range signatures {
		out.Signatures = append(out.Signatures, signatureView(sig))
	}
	return out, nil
}

// VerifySignature recomputes the signature token from its stored fields.
// Verifying twice keeps the first verification date.
func (s *Service) VerifySignature(ctx context.Context, actor rbac.Actor, signatureID string) (SignatureView, error) {
	if err := authorize(actor, rbac.PermSignaturesVerify); err != nil {
		return SignatureView{}, err
	}
	sig, err := s.store.GetSignature(ctx, strings.TrimSpace(signatureID))
	if errors.Is(err, sql.ErrNoRows) {
		return SignatureView{}, errNotFound("Signature")
	}
	if err != nil {
		return SignatureView{}, err
	}
	if !workflow.VerifySignatureHash([]byte(s.cfg.SigningSecret), sig.SignatureHash, sig.MinutesID, sig.MinutesVersion, sig.SignerRole, sig.SignerName, sig.SignedAt) {
		return SignatureView{}, domainError(http.StatusConflict, "SIGNATURE_MISMATCH", "Signature does not match the signed minutes", nil)
	}
	if sig.Verified {
		return signatureView(sig), nil
	}

	m, err := s.loadMinutes(ctx, sig.MinutesID)
	if err != nil {
		return SignatureView{}, err
	}
	now := s.now()
	event := s.newEvent(m, "signature_verified", actor, map[string]any{"signatureId": sig.ID})
	if err := s.store.MarkSignatureVerified(ctx, sig.ID, now, event); err != nil {
		return SignatureView{}, err
	}
	sig.Verified = true
	sig.VerificationDate = &now
	return signatureView(sig), nil
}
