package document

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
)

// digest computes the content hash used for conflict detection (spec §6).
// It is a compact, stable, non-cryptographic function of the canonical
// stringification of content: encoding/json.Marshal already renders map
// keys in sorted order, which gives us the canonical string for free. We
// then fold it through a 32-bit rolling hash and render the absolute value
// in base 36. Collisions are tolerated: two different contents with the
// same digest make DetectConflicts report no conflict between them.
func digest(content any) string {
	data, err := json.Marshal(content)
	if err != nil {
		// content is always JSON-shaped by construction (maps, slices,
		// strings, numbers, bools); a marshal failure here means a caller
		// put something non-serializable in, which we still need a stable
		// digest for rather than panicking.
		data = []byte(err.Error())
	}

	var h int32
	for _, r := range string(data) {
		h = (h << 5) - h + int32(r)
	}
	if h < 0 {
		h = -h
	}
	return strconv.FormatInt(int64(h), 36)
}

// contentSize returns the byte size of content's canonical JSON encoding,
// used for Stats.ContentSizeBytes.
func contentSize(content any) int {
	data, err := json.Marshal(content)
	if err != nil {
		return 0
	}
	return len(data)
}

// String renders a Stats value with a human-readable content size, for log
// lines (the numeric ContentSizeBytes field remains the programmatic
// contract — this is display-only).
func (s Stats) String() string {
	return fmt.Sprintf("document %s: revision=%d ops=%d size=%s active_sessions=%d distinct_users=%d",
		s.DocumentID, s.Revision, s.OperationCount, humanize.Bytes(uint64(s.ContentSizeBytes)),
		s.ActiveSessionCount, s.DistinctActiveUsers)
}
