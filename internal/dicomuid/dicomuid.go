// Package dicomuid generates DICOM unique identifiers in the 2.25 UUID arc.
package dicomuid

import (
	"math/big"

	"github.com/google/uuid"
)

// New returns a fresh DICOM UID of the form "2.25.<uuid>" where the UUID is
// rendered as a decimal integer, the registration-free arc defined by
// PS3.5 B.2. The result is at most 44 characters, inside the 64-character
// UID limit.
func New() string {
	u := uuid.New()
	n := new(big.Int).SetBytes(u[:])
	return "2.25." + n.String()
}
