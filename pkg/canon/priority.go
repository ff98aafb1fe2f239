package canon

import "sort"

// ValidatePriorities verifies that the priority multiset of objectives is
// exactly {1..N}. The returned error is a *PriorityError.
func ValidatePriorities(objectives []Objective) error {
	got := make([]int, len(objectives))
	seen := make(map[int]int, len(objectives))
	for i, o := range objectives {
		got[i] = o.Priority
		seen[o.Priority]++
	}
	sort.Ints(got)

	var dups []int
	for p, n := range seen {
		if n > 1 {
			dups = append(dups, p)
		}
	}
	sort.Ints(dups)

	ok := len(dups) == 0
	for i, p := range got {
		if p != i+1 {
			ok = false
			break
		}
	}
	if ok {
		return nil
	}
	return &PriorityError{Duplicates: dups, Got: got, Expected: len(objectives)}
}

// PriorityOrder returns objective ids from highest rank (priority 1) down.
// Callers must validate priorities first; ties keep input order.
func PriorityOrder(objectives []Objective) []string {
	sorted := append([]Objective(nil), objectives...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	ids := make([]string, len(sorted))
	for i, o := range sorted {
		ids[i] = o.ID
	}
	return ids
}
