package service

import "sort"

// uniqueSorted drops zeros and duplicates. Ascending order keeps lock
// acquisition consistent across transactions.
func uniqueSorted(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func derefID(p *uint64) uint64 {
	if p == nil {
		return 0
	}
	return *p
}
