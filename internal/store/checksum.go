package store

import (
	"encoding/binary"
	"encoding/json"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// roomChecksum hashes a canonical serialization of a room's durable state:
// session records in player-id order (own checksums excluded) followed by
// the game snapshot bytes. Any unintended mutation changes the sum.
func roomChecksum(sessions map[string]*SessionRecord, snapshot []byte) uint64 {
	ids := make([]string, 0, len(sessions))
	for id := range sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	d := xxhash.New()
	for _, id := range ids {
		rec := *sessions[id]
		rec.Checksum = 0
		data, err := json.Marshal(&rec)
		if err != nil {
			continue
		}
		_, _ = d.Write(data)
		_, _ = d.Write([]byte{0})
	}
	var sep [8]byte
	binary.LittleEndian.PutUint64(sep[:], uint64(len(snapshot)))
	_, _ = d.Write(sep[:])
	_, _ = d.Write(snapshot)
	return d.Sum64()
}

func sessionChecksum(rec *SessionRecord) uint64 {
	c := *rec
	c.Checksum = 0
	data, err := json.Marshal(&c)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(data)
}
