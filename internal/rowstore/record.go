package rowstore

// Field is one named value of a Record.
type Field struct {
	Name  string
	Value any
}

// F builds a Field.
func F(name string, value any) Field {
	return Field{Name: name, Value: value}
}

// Record is an ordered mapping from column name to value. Keys keep the
// order they were first set in.
type Record struct {
	fields []Field
}

// NewRecord builds a record from fields. A repeated name overwrites the
// earlier value in place.
func NewRecord(fields ...Field) Record {
	var r Record
	for _, f := range fields {
		r.Set(f.Name, f.Value)
	}
	return r
}

// Set assigns a value, appending the key if it is new.
func (r *Record) Set(name string, value any) {
	for i := range r.fields {
		if r.fields[i].Name == name {
			r.fields[i].Value = value
			return
		}
	}
	r.fields = append(r.fields, Field{Name: name, Value: value})
}

// Get returns the value for name and whether it is present.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Text returns a TEXT value, or "" when absent or NULL.
func (r Record) Text(name string) string {
	v, _ := r.Get(name)
	s, _ := v.(string)
	return s
}

// Int returns an INTEGER value, or 0 when absent or NULL.
func (r Record) Int(name string) int64 {
	v, _ := r.Get(name)
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

// ID returns the identity value. ok is false for records never saved.
func (r Record) ID() (int64, bool) {
	v, ok := r.Get(IdentityColumn)
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

// Keys returns the column names in order.
func (r Record) Keys() []string {
	keys := make([]string, len(r.fields))
	for i, f := range r.fields {
		keys[i] = f.Name
	}
	return keys
}

// Len returns the number of keys.
func (r Record) Len() int {
	return len(r.fields)
}
