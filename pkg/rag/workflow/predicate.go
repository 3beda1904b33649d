package workflow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/pkg/rag"
)

// Evaluate tests p against the collected data. Comparisons ignore case and
// surrounding whitespace. A malformed predicate is a configuration fault.
func Evaluate(p *entity.Predicate, data entity.CollectedData) (bool, error) {
	if err := checkPredicate(p); err != nil {
		return false, err
	}

	value, ok := data.Lookup(p.Field)
	value = strings.TrimSpace(value)
	want := strings.TrimSpace(p.Value)

	switch p.Op {
	case entity.PredicateExists:
		return ok && value != "", nil
	case entity.PredicateNotExists:
		return !ok || value == "", nil
	case entity.PredicateEquals:
		return ok && strings.EqualFold(value, want), nil
	case entity.PredicateNotEquals:
		return !ok || !strings.EqualFold(value, want), nil
	case entity.PredicateContains:
		return ok && strings.Contains(strings.ToLower(value), strings.ToLower(want)), nil
	case entity.PredicateMinLength:
		n, _ := strconv.Atoi(want)
		return ok && utf8.RuneCountInString(value) >= n, nil
	case entity.PredicateMatches:
		re := regexp.MustCompile(p.Value)
		return ok && re.MatchString(value), nil
	}
	return false, fmt.Errorf("%w: unknown predicate op %q", rag.ErrInvalidWorkflow, p.Op)
}

func checkPredicate(p *entity.Predicate) error {
	if p == nil {
		return fmt.Errorf("%w: missing predicate", rag.ErrInvalidWorkflow)
	}
	if strings.TrimSpace(p.Field) == "" {
		return fmt.Errorf("%w: predicate without field", rag.ErrInvalidWorkflow)
	}
	switch p.Op {
	case entity.PredicateExists, entity.PredicateNotExists,
		entity.PredicateEquals, entity.PredicateNotEquals, entity.PredicateContains:
		return nil
	case entity.PredicateMinLength:
		if _, err := strconv.Atoi(strings.TrimSpace(p.Value)); err != nil {
			return fmt.Errorf("%w: min_length needs an integer, got %q", rag.ErrInvalidWorkflow, p.Value)
		}
		return nil
	case entity.PredicateMatches:
		if _, err := regexp.Compile(p.Value); err != nil {
			return fmt.Errorf("%w: bad pattern %q: %v", rag.ErrInvalidWorkflow, p.Value, err)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown predicate op %q", rag.ErrInvalidWorkflow, p.Op)
}
