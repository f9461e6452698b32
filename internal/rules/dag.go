package rules

import "github.com/neomind/edge/internal/neoerr"

// Dependencies maps a rule id to the ids of the rules it depends on: a
// rule's dependency list is satisfied once every listed rule has run.
type Dependencies map[string][]string

// ValidateDependencies checks that every referenced id exists in ids and
// that the graph has no cycle, returning a topological order on success.
func ValidateDependencies(ids []string, deps Dependencies) ([]string, error) {
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	for id, ds := range deps {
		if !known[id] {
			return nil, neoerr.Validationf("dependency graph references unknown rule %q", id)
		}
		for _, d := range ds {
			if !known[d] {
				return nil, neoerr.Validationf("rule %q depends on unknown rule %q", id, d)
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(ids))
	var order []string

	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case black:
			return nil
		case gray:
			return neoerr.Validationf("dependency cycle detected at rule %q", id)
		}
		color[id] = gray
		for _, d := range deps[id] {
			if err := visit(d); err != nil {
				return err
			}
		}
		color[id] = black
		order = append(order, id)
		return nil
	}

	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// ReadyRules returns every id in ids that is not itself in completed and
// whose entire Dependencies list is a subset of completed.
func ReadyRules(ids []string, deps Dependencies, completed map[string]bool) []string {
	var ready []string
	for _, id := range ids {
		if completed[id] {
			continue
		}
		ok := true
		for _, d := range deps[id] {
			if !completed[d] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, id)
		}
	}
	return ready
}
