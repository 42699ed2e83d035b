package matcher

// Collision lists the source entries that were all placed on one target row.
type Collision[T any, R comparable] struct {
	Row     R
	Label   string
	Sources []SourceEntry[T]
}

// FindCollisions reports every target row claimed by more than one match,
// in order of the row's first claim.
func FindCollisions[T any, R comparable](matches []Match[T, R]) []Collision[T, R] {
	claims := make(map[R]int)
	var all []Collision[T, R]
	for _, m := range matches {
		idx, ok := claims[m.Target.Row]
		if !ok {
			claims[m.Target.Row] = len(all)
			all = append(all, Collision[T, R]{Row: m.Target.Row, Label: m.Target.Label})
			idx = len(all) - 1
		}
		all[idx].Sources = append(all[idx].Sources, m.Source)
	}

	var collisions []Collision[T, R]
	for _, c := range all {
		if len(c.Sources) > 1 {
			collisions = append(collisions, c)
		}
	}
	return collisions
}
