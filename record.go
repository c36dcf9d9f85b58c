package encattr

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/hengadev/errsx"
)

// Record is one row of a Model. Encrypted attributes are decrypted lazily from
// their shadow columns and the plaintext is cached until the record is reloaded.
// A Record is not safe for concurrent use.
type Record struct {
	model *Model
	store *Store

	values   map[string]any
	original map[string]any
	// loaded holds the columns selected by the query that produced the record;
	// nil means every column.
	loaded map[string]bool
	plain  map[string]any

	persisted bool
	frozen    bool
}

// NewRecord returns an empty, unsaved record of m that is not bound to a store.
func (m *Model) NewRecord() *Record {
	return &Record{
		model:    m,
		values:   make(map[string]any),
		original: make(map[string]any),
		plain:    make(map[string]any),
	}
}

func newLoadedRecord(m *Model, s *Store, row map[string]any, selected []string) *Record {
	r := m.NewRecord()
	r.store = s
	r.reset(row, selected)
	return r
}

func (r *Record) reset(row map[string]any, selected []string) {
	r.values = maps.Clone(row)
	if r.values == nil {
		r.values = make(map[string]any)
	}
	r.original = maps.Clone(r.values)
	r.plain = make(map[string]any)
	r.persisted = true
	r.loaded = nil
	if len(selected) > 0 {
		r.loaded = make(map[string]bool, len(selected))
		for _, col := range selected {
			r.loaded[col] = true
		}
	}
}

// Model returns the record's model.
func (r *Record) Model() *Model { return r.model }

// ID returns the primary key value.
func (r *Record) ID() any { return r.values[r.model.primaryKey] }

// IsNew reports whether the record has never been saved or loaded.
func (r *Record) IsNew() bool { return !r.persisted }

// Freeze makes the record read-only. Reads still decrypt but no longer cache.
func (r *Record) Freeze() { r.frozen = true }

func (r *Record) Frozen() bool { return r.frozen }

// Get returns the value of attr. Encrypted attributes are decrypted on first
// access. When the record was loaded without the shadow column, Get returns nil.
func (r *Record) Get(attr string) (any, error) {
	a, encrypted := r.model.attrs[attr]
	if !encrypted {
		if !r.model.isKnownAttribute(attr) {
			return nil, NewUnknownAttributeError(r.model.name, attr)
		}
		return r.values[attr], nil
	}

	if !r.shadowLoaded(a) {
		return nil, nil
	}
	if v, cached := r.plain[attr]; cached {
		return v, nil
	}

	v, err := r.model.Decrypt(r, attr, r.values)
	if err != nil {
		return nil, err
	}
	if !r.frozen {
		r.plain[attr] = v
	}
	return v, nil
}

// MustGet is like Get but panics on error.
func (r *Record) MustGet(attr string) any {
	v, err := r.Get(attr)
	if err != nil {
		panic(err)
	}
	return v
}

// Set assigns attr. Encrypted attributes are encrypted into their shadow columns
// immediately; assigning the current plaintext again is a no-op.
func (r *Record) Set(attr string, value any) error {
	if r.frozen {
		return fmt.Errorf("%w: cannot set '%s'", ErrFrozenRecord, attr)
	}

	a, encrypted := r.model.attrs[attr]
	if !encrypted {
		if !r.model.isKnownAttribute(attr) {
			return NewUnknownAttributeError(r.model.name, attr)
		}
		r.values[attr] = value
		if owner, shadow := r.model.byColumn[attr]; shadow {
			delete(r.plain, owner)
		}
		return nil
	}

	current, err := r.Get(attr)
	if err != nil {
		return err
	}
	if a.sameValue(current, value) {
		return nil
	}

	cols, err := r.model.Encrypt(r, a.Name, value)
	if err != nil {
		return err
	}
	for col, v := range cols {
		r.values[col] = v
		if r.loaded != nil {
			r.loaded[col] = true
		}
	}
	r.plain[attr] = value
	return nil
}

// Present reports whether attr holds a non-blank value. For encrypted attributes
// it checks the shadow column without decrypting.
func (r *Record) Present(attr string) bool {
	if a, encrypted := r.model.attrs[attr]; encrypted {
		return !isBlank(r.values[a.Column])
	}
	v := r.values[attr]
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	if isBlank(v) {
		return false
	}
	rv := reflect.ValueOf(v)
	return !rv.IsZero()
}

// Was returns the value attr had when the record was last loaded or saved.
func (r *Record) Was(attr string) (any, error) {
	if _, err := r.Get(attr); err != nil {
		return nil, err
	}
	if _, encrypted := r.model.attrs[attr]; encrypted {
		return r.model.Decrypt(r, attr, r.original)
	}
	return r.original[attr], nil
}

// InDatabase returns the persisted value of attr.
func (r *Record) InDatabase(attr string) (any, error) {
	return r.Was(attr)
}

// Restore discards unsaved changes to attr, including its shadow columns.
func (r *Record) Restore(attr string) error {
	if r.frozen {
		return fmt.Errorf("%w: cannot restore '%s'", ErrFrozenRecord, attr)
	}
	a, encrypted := r.model.attrs[attr]
	if !encrypted {
		if !r.model.isKnownAttribute(attr) {
			return NewUnknownAttributeError(r.model.name, attr)
		}
		r.restoreColumn(attr)
		return nil
	}
	for _, col := range a.ShadowColumns() {
		r.restoreColumn(col)
	}
	delete(r.plain, attr)
	return nil
}

func (r *Record) restoreColumn(col string) {
	if v, ok := r.original[col]; ok {
		r.values[col] = v
		return
	}
	delete(r.values, col)
}

// Changed reports whether attr differs from its persisted value.
func (r *Record) Changed(attr string) bool {
	if a, encrypted := r.model.attrs[attr]; encrypted {
		for _, col := range a.ShadowColumns() {
			if r.columnChanged(col) {
				return true
			}
		}
		return false
	}
	return r.columnChanged(attr)
}

// ChangedAttributes lists changed attributes, naming encrypted attributes
// rather than their shadow columns.
func (r *Record) ChangedAttributes() []string {
	seen := make(map[string]bool)
	for _, col := range r.changedColumns() {
		name := col
		if owner, shadow := r.model.byColumn[col]; shadow {
			name = owner
		}
		seen[name] = true
	}
	out := slices.Collect(maps.Keys(seen))
	sort.Strings(out)
	return out
}

func (r *Record) changedColumns() []string {
	var cols []string
	for col := range r.values {
		if r.model.virtual[col] {
			continue
		}
		if r.columnChanged(col) {
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)
	return cols
}

func (r *Record) columnChanged(col string) bool {
	cur, hasCur := r.values[col]
	orig, hasOrig := r.original[col]
	if hasCur != hasOrig {
		return hasCur && cur != nil
	}
	return !reflect.DeepEqual(cur, orig)
}

// Attributes returns the record's column values. Every encrypted attribute is
// decrypted first, but plaintext attributes are left out of the result so they
// cannot be serialized by accident; their shadow columns are included.
func (r *Record) Attributes() (map[string]any, error) {
	for _, a := range r.model.EncryptedAttributes() {
		if _, err := r.Get(a.Name); err != nil {
			return nil, err
		}
	}
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		if r.model.IsEncrypted(k) {
			continue
		}
		out[k] = v
	}
	return out, nil
}

// AssignAttributes sets several attributes at once. Plain attributes are
// assigned before encrypted ones so key functions and conditions see them.
// Failures are collected per attribute.
func (r *Record) AssignAttributes(attrs map[string]any) error {
	if len(attrs) == 0 {
		return nil
	}

	var plain, encrypted []string
	for k := range attrs {
		if r.model.IsEncrypted(k) {
			encrypted = append(encrypted, k)
		} else {
			plain = append(plain, k)
		}
	}
	sort.Strings(plain)
	sort.Strings(encrypted)

	var errs errsx.Map
	for _, pass := range [][]string{plain, encrypted} {
		for _, k := range pass {
			if err := r.Set(k, attrs[k]); err != nil {
				errs.Set(fmt.Sprintf("%s '%s'", Assign, k), err)
			}
		}
	}
	return errs.AsError()
}

// SetAttributes is AssignAttributes.
func (r *Record) SetAttributes(attrs map[string]any) error {
	return r.AssignAttributes(attrs)
}

// Reload re-reads the record from its store and drops every cached plaintext.
func (r *Record) Reload(ctx context.Context) error {
	if r.store == nil || !r.persisted {
		return fmt.Errorf("%w: cannot reload %s", ErrNotPersisted, r.model.name)
	}
	return r.store.reload(ctx, r)
}

// Save persists the record through its store.
func (r *Record) Save(ctx context.Context) error {
	if r.store == nil {
		return fmt.Errorf("%w: %s", ErrModelNotBound, r.model.name)
	}
	return r.store.Save(ctx, r)
}

func (r *Record) shadowLoaded(a *EncryptedAttribute) bool {
	if r.loaded == nil {
		return true
	}
	has, known := r.model.hasColumn(a.Column)
	if !known || !has {
		return true
	}
	return r.loaded[a.Column]
}

// markSaved makes the current values the persisted baseline.
func (r *Record) markSaved() {
	r.original = maps.Clone(r.values)
	r.persisted = true
}
