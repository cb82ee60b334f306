package tables

import (
	"crypto/sha256"
	"fmt"
)

// checksumPrefix names the digest algorithm so recorded checksums stay
// self-describing.
const checksumPrefix = "sha256:"

// ComputeChecksum digests an encoded object for its manifest sidecar.
func ComputeChecksum(data []byte) string {
	return fmt.Sprintf("%s%x", checksumPrefix, sha256.Sum256(data))
}

// VerifyChecksum reports whether data still matches a recorded checksum.
func VerifyChecksum(data []byte, recorded string) bool {
	return ComputeChecksum(data) == recorded
}
