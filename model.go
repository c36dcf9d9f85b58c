package encattr

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/hengadev/encattr/internal/crypto"
)

// Model is a record class bound to one table. It owns the encrypted attribute
// declarations and the columns introspected from the database.
type Model struct {
	name          string
	table         string
	primaryKey    string
	defaultPrefix string
	defaultSuffix string
	defaultMode   Mode
	logger        *slog.Logger
	cipher        *crypto.AttributeCipher

	attrs    map[string]*EncryptedAttribute
	order    []string
	byColumn map[string]string
	virtual  map[string]bool

	mu        sync.RWMutex
	connected bool
	columns   []string
	columnSet map[string]bool
	keys      map[string][]byte
}

// NewModel creates a model for table. name is used in errors and logs.
func NewModel(name, table string, options ...ModelOption) (*Model, error) {
	if name == "" || table == "" {
		return nil, fmt.Errorf("%w: model name and table are required", ErrInvalidConfiguration)
	}
	m := &Model{
		name:          name,
		table:         table,
		primaryKey:    DefaultPrimaryKey,
		defaultPrefix: DefaultPrefix,
		defaultSuffix: DefaultSuffix,
		defaultMode:   PerAttributeIV,
		logger:        slog.Default(),
		cipher:        crypto.NewAttributeCipher(),
		attrs:         make(map[string]*EncryptedAttribute),
		byColumn:      make(map[string]string),
		virtual:       make(map[string]bool),
		keys:          make(map[string][]byte),
	}
	for i, opt := range options {
		if err := opt(m); err != nil {
			return nil, fmt.Errorf("invalid option %d: %w", i+1, err)
		}
	}
	return m, nil
}

func (m *Model) Name() string       { return m.name }
func (m *Model) Table() string      { return m.table }
func (m *Model) PrimaryKey() string { return m.primaryKey }

// AttrEncrypted declares attr as an encrypted attribute backed by a shadow column.
func (m *Model) AttrEncrypted(attr string, options ...AttributeOption) error {
	if attr == "" {
		return fmt.Errorf("%w: attribute name cannot be empty", ErrInvalidConfiguration)
	}
	if _, exists := m.attrs[attr]; exists {
		return fmt.Errorf("%w: '%s' on model %s", ErrDuplicateAttribute, attr, m.name)
	}

	a := &EncryptedAttribute{
		Name:   attr,
		Mode:   m.defaultMode,
		Encode: true,
		prefix: m.defaultPrefix,
		suffix: m.defaultSuffix,
	}
	for i, opt := range options {
		if err := opt(a); err != nil {
			return fmt.Errorf("invalid option %d for attribute '%s': %w", i+1, attr, err)
		}
	}

	a.Column = a.column
	if a.Column == "" {
		a.Column = a.prefix + attr + a.suffix
	}
	if a.Column == attr {
		return fmt.Errorf("%w: shadow column for '%s' must differ from the attribute name", ErrInvalidConfiguration, attr)
	}
	if a.key == nil && a.keyFunc == nil && a.keyRef == "" {
		return fmt.Errorf("%w: attribute '%s' needs WithKey, WithKeyFunc or WithKeyRef", ErrInvalidConfiguration, attr)
	}
	if a.key != nil && a.Mode == PerAttributeIV && len(a.key) != crypto.KeySize {
		return fmt.Errorf("%w: attribute '%s' in mode %s needs a %d byte key, got %d",
			ErrInvalidConfiguration, attr, a.Mode, crypto.KeySize, len(a.key))
	}

	for _, col := range a.ShadowColumns() {
		if owner, taken := m.byColumn[col]; taken {
			return fmt.Errorf("%w: column '%s' already used by attribute '%s'", ErrInvalidConfiguration, col, owner)
		}
		if _, clash := m.attrs[col]; clash {
			return fmt.Errorf("%w: column '%s' collides with encrypted attribute '%s'", ErrInvalidConfiguration, col, col)
		}
	}
	if _, clash := m.byColumn[attr]; clash {
		return fmt.Errorf("%w: attribute '%s' collides with a shadow column", ErrInvalidConfiguration, attr)
	}

	m.attrs[attr] = a
	m.order = append(m.order, attr)
	for _, col := range a.ShadowColumns() {
		m.byColumn[col] = attr
	}
	return nil
}

// IsEncrypted reports whether attr was declared with AttrEncrypted.
func (m *Model) IsEncrypted(attr string) bool {
	_, ok := m.attrs[attr]
	return ok
}

// EncryptedAttribute returns the declaration for attr.
func (m *Model) EncryptedAttribute(attr string) (*EncryptedAttribute, bool) {
	a, ok := m.attrs[attr]
	return a, ok
}

// EncryptedAttributes returns the declarations in declaration order.
func (m *Model) EncryptedAttributes() []*EncryptedAttribute {
	out := make([]*EncryptedAttribute, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.attrs[name])
	}
	return out
}

// ShadowColumns lists every column managed by encrypted attributes.
func (m *Model) ShadowColumns() []string {
	var cols []string
	for _, a := range m.EncryptedAttributes() {
		cols = append(cols, a.ShadowColumns()...)
	}
	return cols
}

// ColumnsAvailable reports whether the model is connected and its table exists,
// which is when column introspection results can be trusted.
func (m *Model) ColumnsAvailable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected && len(m.columns) > 0
}

// Columns returns the introspected table columns, or nil when unavailable.
func (m *Model) Columns() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.columns)
}

// AccessorNames lists the reader and writer names backed by table columns, followed
// by the accessors synthesized for each encrypted attribute.
func (m *Model) AccessorNames() []string {
	var names []string
	for _, col := range m.Columns() {
		names = append(names, col, col+"=")
	}
	sort.Strings(names)
	for _, a := range m.EncryptedAttributes() {
		names = append(names,
			a.Name, a.Name+"=", a.Name+"?",
			a.Name+"_was", a.Name+"_in_database", "restore_"+a.Name)
	}
	return names
}

// MissingColumns lists shadow columns not present in the table. It returns nil
// when columns are unavailable.
func (m *Model) MissingColumns() []string {
	if !m.ColumnsAvailable() {
		return nil
	}
	var missing []string
	for _, col := range m.ShadowColumns() {
		if has, _ := m.hasColumn(col); !has {
			missing = append(missing, col)
		}
	}
	return missing
}

// hasColumn reports whether the table has col, and whether the answer is known.
func (m *Model) hasColumn(col string) (has bool, known bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.connected || len(m.columns) == 0 {
		return false, false
	}
	return m.columnSet[col], true
}

// isKnownAttribute reports whether attr can be read or written on a record.
func (m *Model) isKnownAttribute(attr string) bool {
	if m.IsEncrypted(attr) || m.virtual[attr] || attr == m.primaryKey {
		return true
	}
	if _, shadow := m.byColumn[attr]; shadow {
		return true
	}
	has, known := m.hasColumn(attr)
	return has || !known
}

func (m *Model) setColumns(cols []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	m.columns = slices.Clone(cols)
	m.columnSet = make(map[string]bool, len(cols))
	for _, c := range cols {
		m.columnSet[c] = true
	}
}

func (m *Model) setResolvedKey(attr string, key []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[attr] = append([]byte(nil), key...)
}

func (m *Model) resolvedKey(attr string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.keys[attr]
	return key, ok
}
