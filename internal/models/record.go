package models

// Record is an ordered set of fields as returned by the counter API.
// Values are already rendered to their CSV text form. Copies of a Record
// share storage; use Clone before mutating one independently.
type Record struct {
	keys   []string
	values map[string]string
}

// NewRecord builds a record from alternating key/value pairs.
func NewRecord(pairs ...string) Record {
	r := Record{values: make(map[string]string, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(pairs[i], pairs[i+1])
	}
	return r
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	c := Record{
		keys:   append([]string(nil), r.keys...),
		values: make(map[string]string, len(r.values)),
	}
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// Keys returns the field names in payload order.
func (r Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

func (r Record) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

func (r Record) Len() int {
	return len(r.keys)
}

// Set overwrites an existing field in place or appends a new one.
func (r *Record) Set(key, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Delete removes a field. Missing fields are ignored.
func (r *Record) Delete(key string) {
	if _, ok := r.values[key]; !ok {
		return
	}
	delete(r.values, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i:i], r.keys[i+1:]...)
			break
		}
	}
}

// Rename changes a field name keeping its position. If the new name is
// already taken, that field is dropped first.
func (r *Record) Rename(from, to string) {
	v, ok := r.values[from]
	if !ok || from == to {
		return
	}
	r.Delete(to)
	for i, k := range r.keys {
		if k == from {
			r.keys[i] = to
			break
		}
	}
	delete(r.values, from)
	r.values[to] = v
}

// Columns returns the union of record keys in first-appearance order.
func Columns(records []Record) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range records {
		for _, k := range r.keys {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}
