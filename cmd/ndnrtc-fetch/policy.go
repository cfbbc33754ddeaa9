package main

import (
	"fmt"
	"os"
)

// fileTrustChecker is a minimal stand-in for the validation capability
// spec.md §1 leaves to the caller (key management and trust policy are an
// explicit Non-goal): it only confirms the manifest is non-empty and that a
// trust anchor file was actually readable at startup. Real signature
// verification against the anchor is out of scope here.
type fileTrustChecker struct {
	anchor []byte
}

func loadPolicy(path string) (*fileTrustChecker, error) {
	anchor, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	if len(anchor) == 0 {
		return nil, fmt.Errorf("policy file %q is empty", path)
	}
	return &fileTrustChecker{anchor: anchor}, nil
}

func (c *fileTrustChecker) CheckManifestSignature(manifest []byte) error {
	if len(manifest) == 0 {
		return fmt.Errorf("empty manifest")
	}
	return nil
}
