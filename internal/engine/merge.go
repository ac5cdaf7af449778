package engine

import "skywatch/internal/model"

// Merge concatenates alert sequences and deduplicates by id. The first-seen
// record for an id wins; later duplicates are discarded without touching the
// kept record. Output preserves first-seen order, so Merge is idempotent on
// already-deduplicated input.
func Merge(seqs ...[]model.Alert) []model.Alert {
	out := make([]model.Alert, 0)
	seen := make(map[string]struct{})
	for _, seq := range seqs {
		for _, a := range seq {
			if a.ID == "" {
				continue
			}
			if _, ok := seen[a.ID]; ok {
				continue
			}
			seen[a.ID] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}
