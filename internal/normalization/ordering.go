package normalization

import (
	"sort"

	"solana-cgt/internal/domain"
)

// DedupAndOrder merges normalized events across all requested wallets,
// removes duplicate transactions and establishes the total order required by
// the ledger.
//
// Duplicates are keyed by transaction signature; the first-seen occurrence
// wins, where "first seen" is the explicit ingestion sequence carried on each
// event, not iteration order. The surviving set is sorted by
// (timestamp, event id) ascending, which makes the output byte-for-byte
// identical across runs over the same raw input set.
func DedupAndOrder(events []*domain.NormalizedEvent) []*domain.NormalizedEvent {
	firstSeen := make(map[string]int64)
	for _, ev := range events {
		seq, ok := firstSeen[ev.RawRef]
		if !ok || ev.IngestSeq < seq {
			firstSeen[ev.RawRef] = ev.IngestSeq
		}
	}

	// Keep only events belonging to the first-seen fetch of each transaction.
	// Within a fetch, an event id can appear at most once; drop exact
	// re-emissions as well.
	seenIDs := make(map[string]bool)
	deduped := make([]*domain.NormalizedEvent, 0, len(events))
	for _, ev := range events {
		if ev.IngestSeq != firstSeen[ev.RawRef] {
			continue
		}
		if seenIDs[ev.ID] {
			continue
		}
		seenIDs[ev.ID] = true
		deduped = append(deduped, ev)
	}

	sort.Slice(deduped, func(i, j int) bool {
		return compareEvents(deduped[i], deduped[j]) < 0
	})
	return deduped
}

// compareEvents returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func compareEvents(a, b *domain.NormalizedEvent) int {
	if !a.Timestamp.Equal(b.Timestamp) {
		if a.Timestamp.Before(b.Timestamp) {
			return -1
		}
		return 1
	}
	if a.ID != b.ID {
		if a.ID < b.ID {
			return -1
		}
		return 1
	}
	return 0
}
