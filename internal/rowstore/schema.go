package rowstore

import (
	"fmt"
	"regexp"
	"strings"
)

// IdentityColumn is the store-assigned surrogate key present in every table.
const IdentityColumn = "id"

// Datatype is the logical SQLite type of a column.
type Datatype string

const (
	Identity Datatype = "INTEGER PRIMARY KEY"
	Integer  Datatype = "INTEGER"
	Real     Datatype = "REAL"
	Text     Datatype = "TEXT"
	Blob     Datatype = "BLOB"
)

// Column is one caller-declared column.
type Column struct {
	Name string
	Type Datatype
}

// Schema is the ordered column list of a table. The identity column is
// appended by NewSchema and never declared by callers.
type Schema struct {
	columns []Column
	index   map[string]int
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validIdent(name string) bool {
	return identRe.MatchString(name)
}

// NewSchema validates the declared columns and appends the identity column.
func NewSchema(cols ...Column) (Schema, error) {
	s := Schema{index: make(map[string]int, len(cols)+1)}
	for _, c := range cols {
		if !validIdent(c.Name) {
			return Schema{}, fmt.Errorf("invalid column name %q", c.Name)
		}
		if strings.EqualFold(c.Name, IdentityColumn) {
			return Schema{}, fmt.Errorf("column %q is reserved for the identity", c.Name)
		}
		switch c.Type {
		case Integer, Real, Text, Blob:
		default:
			return Schema{}, fmt.Errorf("column %q: unsupported datatype %q", c.Name, c.Type)
		}
		if _, dup := s.index[c.Name]; dup {
			return Schema{}, fmt.Errorf("duplicate column %q", c.Name)
		}
		s.index[c.Name] = len(s.columns)
		s.columns = append(s.columns, c)
	}
	s.index[IdentityColumn] = len(s.columns)
	s.columns = append(s.columns, Column{Name: IdentityColumn, Type: Identity})
	return s, nil
}

// MustSchema is NewSchema for package-level declarations.
func MustSchema(cols ...Column) Schema {
	s, err := NewSchema(cols...)
	if err != nil {
		panic(err)
	}
	return s
}

// Declared returns the caller-declared column names, without the identity.
func (s Schema) Declared() []string {
	names := make([]string, 0, len(s.columns)-1)
	for _, c := range s.columns {
		if c.Type != Identity {
			names = append(names, c.Name)
		}
	}
	return names
}

// Has reports whether name is a column of the schema.
func (s Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

func (s Schema) column(name string) (Column, bool) {
	i, ok := s.index[name]
	if !ok {
		return Column{}, false
	}
	return s.columns[i], true
}

func (s Schema) ddl() string {
	defs := make([]string, len(s.columns))
	for i, c := range s.columns {
		defs[i] = fmt.Sprintf("%q %s", c.Name, c.Type)
	}
	return strings.Join(defs, ", ")
}

// checkValue reports whether v may be stored in a column of type t.
// NULL fits every column.
func checkValue(t Datatype, v any) bool {
	if v == nil {
		return true
	}
	switch t {
	case Integer, Identity:
		switch v.(type) {
		case int, int8, int16, int32, int64, uint8, uint16, uint32, bool:
			return true
		}
	case Real:
		switch v.(type) {
		case float32, float64, int, int64:
			return true
		}
	case Text:
		_, ok := v.(string)
		return ok
	case Blob:
		_, ok := v.([]byte)
		return ok
	}
	return false
}
