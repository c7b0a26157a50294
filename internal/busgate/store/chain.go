package store

import (
	"encoding/binary"
	"strconv"

	"github.com/zeebo/blake3"
)

// chainDomain separates the event-chain hash from any other blake3 use
// of the same inputs.
var chainDomain = []byte("busgate.event.chain.v1")

// ChainHash computes the hash linking an event to its predecessor.
// prev is the previous event's chain hash, or nil for the first event.
// Every field that carries audit meaning is included, length-prefixed
// so adjacent fields cannot be reinterpreted across boundaries.
func ChainHash(prev []byte, rec BoardingEventRecord) []byte {
	h := blake3.New()

	write := func(b []byte) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(b)))
		_, _ = h.Write(n[:])
		_, _ = h.Write(b)
	}

	write(chainDomain)
	write(prev)
	write([]byte(rec.ID))
	write([]byte(rec.DeviceID))
	write([]byte(rec.BusID))
	write([]byte(rec.RouteID))
	write([]byte(rec.StudentRef.KeyID))
	write(rec.StudentRef.Nonce)
	write(rec.StudentRef.Ciphertext)
	write([]byte(rec.Direction))
	if rec.FaceScore != nil {
		write([]byte(strconv.FormatFloat(*rec.FaceScore, 'g', -1, 64)))
	} else {
		write(nil)
	}
	write([]byte(rec.Decision))
	write([]byte(rec.Reason))

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(rec.DecidedAt.UTC().UnixMilli()))
	write(ts[:])

	return h.Sum(nil)
}
