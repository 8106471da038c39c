package domain

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// ObjectID is a 12-byte document identity: a 4-byte big-endian timestamp in
// seconds, a 5-byte generator discriminator and a 3-byte counter.
type ObjectID [12]byte

// NilObjectID is the zero ObjectID
var NilObjectID ObjectID

// ObjectIDFromHex parses the 24-character hex form
func ObjectIDFromHex(s string) (ObjectID, error) {
	var id ObjectID
	if len(s) != 24 {
		return id, fmt.Errorf("%w: object id %q must be 24 hex characters", ErrInvalidDocument, s)
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return NilObjectID, fmt.Errorf("%w: object id %q: %v", ErrInvalidDocument, s, err)
	}
	return id, nil
}

func (id ObjectID) Hex() string { return hex.EncodeToString(id[:]) }

func (id ObjectID) String() string { return `ObjectId("` + id.Hex() + `")` }

func (id ObjectID) IsZero() bool { return id == NilObjectID }

// Timestamp returns the creation time encoded in the first four bytes
func (id ObjectID) Timestamp() time.Time {
	return time.Unix(int64(binary.BigEndian.Uint32(id[0:4])), 0).UTC()
}
