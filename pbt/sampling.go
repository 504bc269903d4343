package pbt

import "fmt"

// sampleDistinct draws k distinct members uniformly at random from pool,
// excluding any member identity-equal to one in exclude.
func sampleDistinct(rng *safeRand, pool []*Member, k int, exclude ...*Member) ([]*Member, error) {
	candidates := make([]*Member, 0, len(pool))
	for _, m := range pool {
		if containsMember(exclude, m) {
			continue
		}
		candidates = append(candidates, m)
	}
	if len(candidates) < k {
		return nil, fmt.Errorf("pbt: not enough distinct members to sample %d (have %d)", k, len(candidates))
	}
	chosen := make([]*Member, 0, k)
	remaining := append([]*Member(nil), candidates...)
	for i := 0; i < k; i++ {
		idx := rng.intn(len(remaining))
		chosen = append(chosen, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return chosen, nil
}

func containsMember(xs []*Member, m *Member) bool {
	for _, x := range xs {
		if x == m {
			return true
		}
	}
	return false
}
