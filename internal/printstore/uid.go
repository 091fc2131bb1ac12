package printstore

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// OrgRoot prefixes every UID this service generates itself (synthesized
// Image Box instances, Print Jobs). Clients supply their own UIDs for
// Film Session/Film Box/externally-created instances.
const OrgRoot = "1.2.826.0.1.3680043.9.7433"

// NewUID exposes the generator for callers outside this package that
// need to mint a SOP Instance UID on a client's behalf (e.g. the
// association worker, when an N-CREATE request omits one).
func NewUID() string { return generateUID() }

// generateUID follows the teacher's internal/dicom/metadata.go
// generateSecureUID: a cryptographically random suffix under OrgRoot,
// falling back to a timestamp suffix if the CSPRNG read fails.
func generateUID() string {
	max := big.NewInt(1 << 62)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return fmt.Sprintf("%s.%d", OrgRoot, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s.%d", OrgRoot, n.Int64())
}
