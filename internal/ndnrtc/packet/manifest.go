package packet

import "crypto/sha256"

// Digest is a SHA-256 implicit digest of a segment's signed wire encoding.
type Digest [sha256.Size]byte

func DigestOf(wireEncoding []byte) Digest {
	return sha256.Sum256(wireEncoding)
}

// Manifest is an ordered list of segment digests, data then parity (spec.md
// §4.4). It is itself carried in a signed "_manifest" packet; individual
// segments carry only a cheap digest-only signature and are trusted iff
// their digest is a member.
type Manifest struct {
	Digests []Digest
}

func BuildManifest(dataSegments, paritySegments [][]byte) Manifest {
	m := Manifest{Digests: make([]Digest, 0, len(dataSegments)+len(paritySegments))}
	for _, s := range dataSegments {
		m.Digests = append(m.Digests, DigestOf(s))
	}
	for _, s := range paritySegments {
		m.Digests = append(m.Digests, DigestOf(s))
	}
	return m
}

// HasData reports whether d is a member of the manifest.
func (m Manifest) HasData(d Digest) bool {
	for _, existing := range m.Digests {
		if existing == d {
			return true
		}
	}
	return false
}

func (m Manifest) Marshal() []byte {
	b := make([]byte, 0, len(m.Digests)*sha256.Size)
	for _, d := range m.Digests {
		b = append(b, d[:]...)
	}
	return b
}

func UnmarshalManifest(b []byte) Manifest {
	n := len(b) / sha256.Size
	m := Manifest{Digests: make([]Digest, 0, n)}
	for i := 0; i < n; i++ {
		var d Digest
		copy(d[:], b[i*sha256.Size:(i+1)*sha256.Size])
		m.Digests = append(m.Digests, d)
	}
	return m
}
