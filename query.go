package encattr

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// Query is a chainable lookup on one model. Each method returns a new Query,
// so a scope can be shared and refined. Errors from building the query are
// reported by First, All and Count.
type Query struct {
	store    *Store
	model    *Model
	selected []string
	conds    map[string]any
	limit    int
	err      error
}

// Query starts a query on m.
func (s *Store) Query(m *Model) *Query {
	return &Query{store: s, model: m, conds: make(map[string]any)}
}

func (q *Query) clone() *Query {
	c := *q
	c.selected = slices.Clone(q.selected)
	c.conds = maps.Clone(q.conds)
	return &c
}

// Select restricts the loaded columns. Encrypted attributes select their shadow
// columns. The primary key is always loaded so records can be saved and reloaded.
func (q *Query) Select(attrs ...string) *Query {
	c := q.clone()
	add := func(col string) {
		if !slices.Contains(c.selected, col) {
			c.selected = append(c.selected, col)
		}
	}
	add(q.model.primaryKey)
	for _, attr := range attrs {
		if a, ok := q.model.attrs[attr]; ok {
			for _, col := range a.ShadowColumns() {
				add(col)
			}
			continue
		}
		if !q.model.isKnownAttribute(attr) {
			c.setErr(NewUnknownAttributeError(q.model.name, attr))
			continue
		}
		add(attr)
	}
	return c
}

// Where adds equality conditions. Conditions on encrypted attributes are matched
// against the deterministic ciphertext, so they need SingleIVAndSalt mode and a
// static key.
func (q *Query) Where(conds map[string]any) *Query {
	c := q.clone()
	for _, attr := range sortedKeys(conds) {
		value := conds[attr]
		if q.model.IsEncrypted(attr) {
			col, ciphertext, err := q.model.EncryptForQuery(attr, value)
			if err != nil {
				c.setErr(err)
				continue
			}
			c.conds[col] = ciphertext
			continue
		}
		if !q.model.isKnownAttribute(attr) {
			c.setErr(NewUnknownAttributeError(q.model.name, attr))
			continue
		}
		c.conds[attr] = value
	}
	return c
}

// whereColumn adds a condition on a raw column without any rewriting.
func (q *Query) whereColumn(col string, value any) *Query {
	c := q.clone()
	c.conds[col] = value
	return c
}

// Limit caps the number of records returned by All.
func (q *Query) Limit(n int) *Query {
	c := q.clone()
	c.limit = n
	return c
}

// Conditions returns the column conditions the query sends to the database.
func (q *Query) Conditions() map[string]any {
	return maps.Clone(q.conds)
}

// Err returns the first error recorded while building the query.
func (q *Query) Err() error { return q.err }

// First returns the first matching record or ErrRecordNotFound.
func (q *Query) First(ctx context.Context) (*Record, error) {
	records, err := q.Limit(1).All(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, q.model.name)
	}
	return records[0], nil
}

// All returns every matching record.
func (q *Query) All(ctx context.Context) ([]*Record, error) {
	if q.err != nil {
		return nil, q.err
	}
	var records []*Record
	err := q.store.observe(ctx, "find", q.model, func() error {
		rows, err := q.store.fetch(ctx, q.model, q.selected, q.conds, q.limit)
		if err != nil {
			return err
		}
		records = make([]*Record, 0, len(rows))
		for _, row := range rows {
			records = append(records, newLoadedRecord(q.model, q.store, row, q.selected))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Count returns the number of matching rows.
func (q *Query) Count(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	return q.store.count(ctx, q.model, q.conds)
}

func (q *Query) setErr(err error) {
	if q.err == nil {
		q.err = err
	}
}
