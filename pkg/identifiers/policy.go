package identifiers

import (
	"fmt"
	"strings"
)

// DuplicatePolicy decides what happens when an identifier appears more than once.
type DuplicatePolicy string

const (
	// DuplicatesCollapse keeps the first occurrence and drops later repeats.
	DuplicatesCollapse DuplicatePolicy = "collapse"

	// DuplicatesReject fails the run when any identifier repeats.
	DuplicatesReject DuplicatePolicy = "reject"
)

// Validate checks if the policy is known.
func (p DuplicatePolicy) Validate() error {
	switch p {
	case DuplicatesCollapse, DuplicatesReject:
		return nil
	default:
		return fmt.Errorf("invalid duplicate policy: %q", string(p))
	}
}

// DuplicateError lists identifiers that appeared more than once.
type DuplicateError struct {
	Duplicates []string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate identifiers in list: %s", strings.Join(e.Duplicates, ", "))
}

// Dedupe applies policy to ids. It returns the unique identifiers in first
// occurrence order and the repeated ones, each reported once.
func Dedupe(ids []string, policy DuplicatePolicy) ([]string, []string, error) {
	if policy == "" {
		policy = DuplicatesCollapse
	}
	if err := policy.Validate(); err != nil {
		return nil, nil, err
	}

	seen := make(map[string]int, len(ids))
	unique := make([]string, 0, len(ids))
	var dups []string
	for _, id := range ids {
		seen[id]++
		switch seen[id] {
		case 1:
			unique = append(unique, id)
		case 2:
			dups = append(dups, id)
		}
	}

	if len(dups) > 0 && policy == DuplicatesReject {
		return nil, dups, &DuplicateError{Duplicates: dups}
	}
	return unique, dups, nil
}
