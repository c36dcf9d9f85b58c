package encattr

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var finderPattern = regexp.MustCompile(`^(find|scoped)_(all_by|by)_([_a-zA-Z]\w*)$`)

// DynamicFinder is a parsed finder method name such as find_by_email_and_name.
type DynamicFinder struct {
	// Prefix is "find" or "scoped".
	Prefix string
	// Kind is "by" or "all_by".
	Kind       string
	Attributes []string
}

// ParseDynamicFinder parses method, reporting false when it is not a finder name.
func ParseDynamicFinder(method string) (DynamicFinder, bool) {
	match := finderPattern.FindStringSubmatch(method)
	if match == nil {
		return DynamicFinder{}, false
	}
	return DynamicFinder{
		Prefix:     match[1],
		Kind:       match[2],
		Attributes: strings.Split(match[3], "_and_"),
	}, true
}

// String rebuilds the method name.
func (f DynamicFinder) String() string {
	return f.Prefix + "_" + f.Kind + "_" + strings.Join(f.Attributes, "_and_")
}

// Dispatch calls the dynamic finder named by method on m.
//
// Arguments for encrypted attributes in SingleIVAndSalt mode are encrypted and
// the attribute is replaced by its shadow column before the lookup runs. The
// result depends on the method:
//
//	find_by_*        *Record, or nil when nothing matches
//	find_all_by_*    []*Record
//	scoped_by_*      *Query
//	scoped_all_by_*  *Query
func (s *Store) Dispatch(ctx context.Context, m *Model, method string, args ...any) (any, error) {
	finder, ok := ParseDynamicFinder(method)
	if !ok {
		return nil, fmt.Errorf("%w '%s' for %s", ErrNoMethod, method, m.name)
	}
	if len(args) != len(finder.Attributes) {
		return nil, NewArgumentCountError(method, len(finder.Attributes), len(args))
	}

	rewritten, args, err := s.rewriteFinder(ctx, m, finder, args)
	if err != nil {
		return nil, err
	}
	return s.dispatchFinder(ctx, m, rewritten, args)
}

// rewriteFinder swaps searchable encrypted attributes for their shadow columns
// and encrypts the matching arguments.
func (s *Store) rewriteFinder(ctx context.Context, m *Model, finder DynamicFinder, args []any) (DynamicFinder, []any, error) {
	out := DynamicFinder{
		Prefix:     finder.Prefix,
		Kind:       finder.Kind,
		Attributes: make([]string, len(finder.Attributes)),
	}
	outArgs := make([]any, len(args))
	copy(out.Attributes, finder.Attributes)
	copy(outArgs, args)

	for i, attr := range finder.Attributes {
		a, ok := m.attrs[attr]
		if !ok || a.Mode != SingleIVAndSalt {
			continue
		}
		col, ciphertext, err := m.EncryptForQuery(attr, args[i])
		if err != nil {
			return DynamicFinder{}, nil, fmt.Errorf("%s '%s': %w", Find, finder, err)
		}
		s.logger.WarnContext(ctx, "DEPRECATION WARNING: dynamic finders on encrypted attributes will be removed in the next major release",
			"model", m.name, "method", finder.String(), "attribute", attr)
		out.Attributes[i] = col
		outArgs[i] = ciphertext
	}
	return out, outArgs, nil
}

// dispatchFinder runs a finder whose attributes name real columns.
func (s *Store) dispatchFinder(ctx context.Context, m *Model, finder DynamicFinder, args []any) (any, error) {
	q := s.Query(m)
	for i, col := range finder.Attributes {
		if a, encrypted := m.attrs[col]; encrypted {
			return nil, fmt.Errorf("%w: attribute '%s' uses mode %s", ErrNotSearchable, col, a.Mode)
		}
		if has, known := m.hasColumn(col); known && !has && col != m.primaryKey {
			return nil, fmt.Errorf("%w '%s' for %s", ErrNoMethod, finder, m.name)
		}
		q = q.whereColumn(col, args[i])
	}

	switch {
	case finder.Prefix == "scoped":
		return q, nil
	case finder.Kind == "all_by":
		return q.All(ctx)
	default:
		r, err := q.First(ctx)
		if errors.Is(err, ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}
