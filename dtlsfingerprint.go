package webrtc

import (
	"fmt"
	"strings"
)

// DTLSFingerprint specifies the hash function algorithm and certificate
// fingerprint as described in https://tools.ietf.org/html/rfc8122.
type DTLSFingerprint struct {
	Algorithm string
	Value     string
}

// dtlsFingerprintFromCertificate splits a "algorithm hex-bytes" fingerprint
// string, the form dtlsadapter.Certificate.Fingerprint returns, into its
// DTLSFingerprint parts.
func dtlsFingerprintFromCertificate(combined string) (DTLSFingerprint, error) {
	parts := strings.SplitN(combined, " ", 2)
	if len(parts) != 2 {
		return DTLSFingerprint{}, fmt.Errorf("webrtc: malformed certificate fingerprint: %s", combined)
	}
	return DTLSFingerprint{Algorithm: parts[0], Value: parts[1]}, nil
}
