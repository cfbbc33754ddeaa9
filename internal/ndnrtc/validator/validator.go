// Package validator implements sample validation (spec.md §4.4, §7):
// data/parity segments carry a cheap digest-only signature and are trusted
// iff their implicit digest is a member of the frame's signed manifest.
package validator

import (
	"github.com/ndnrtc/fetch-engine/internal/errs"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/buffer"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/name"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/packet"
)

// ManifestChecker verifies a manifest packet's own (strong) signature
// against the trust policy before it is trusted as the digest source of
// truth. A no-op implementation is supplied for tests/fixtures.
type ManifestChecker interface {
	CheckManifestSignature(manifest []byte) error
}

type NoopChecker struct{}

func (NoopChecker) CheckManifestSignature([]byte) error { return nil }

// Validator verifies slot segments against a manifest once one is
// available.
type Validator struct {
	checker ManifestChecker
}

func New(checker ManifestChecker) *Validator {
	if checker == nil {
		checker = NoopChecker{}
	}
	return &Validator{checker: checker}
}

// ValidateSlot verifies slot.Manifest's own signature, then checks every
// fetched segment's digest against it. Stream/live/latest/meta packets
// (manifest == nil) are signed directly and are not checked here.
func (v *Validator) ValidateSlot(s *buffer.Slot, manifestWire []byte) error {
	if s.Manifest == nil {
		s.Verification = buffer.VerificationUnknown
		return nil
	}
	if err := v.checker.CheckManifestSignature(manifestWire); err != nil {
		s.Verification = buffer.VerificationFailed
		return errs.NewVerificationFailure("validator.ValidateSlot", err)
	}
	for segName, req := range s.Fetched {
		if req.Info.SegmentClassVal == name.SegmentManifest {
			continue
		}
		d := packet.DigestOf(req.Data)
		if !s.Manifest.HasData(d) {
			s.Verification = buffer.VerificationFailed
			return errs.NewVerificationFailure("validator.ValidateSlot", errUnlistedDigest(segName))
		}
	}
	s.Verification = buffer.VerificationVerified
	return nil
}

type errUnlistedDigest string

func (e errUnlistedDigest) Error() string { return "segment not listed in manifest: " + string(e) }
