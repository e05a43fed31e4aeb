package sim

import (
	"fmt"
	"maps"
	"sort"

	"github.com/spf13/cast"
)

// Params is an immutable key/value parameter set.
// It is shared by reference: several ComponentInfos may point at the same *Params.
// A nil *Params behaves as an empty set.
type Params struct {
	values map[string]string
}

// NewParams copies kv into a new parameter set.
func NewParams(kv map[string]string) *Params {
	values := make(map[string]string, len(kv))
	maps.Copy(values, kv)
	return &Params{values: values}
}

// EmptyParams returns a parameter set with no keys.
func EmptyParams() *Params {
	return &Params{values: map[string]string{}}
}

// Len returns the number of keys.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.values)
}

// Lookup returns the raw value for key.
func (p *Params) Lookup(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p.values[key]
	return v, ok
}

// Contains reports whether key is set.
func (p *Params) Contains(key string) bool {
	_, ok := p.Lookup(key)
	return ok
}

// Keys returns the keys in sorted order.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the value for key, or def when unset.
func (p *Params) String(key, def string) string {
	if v, ok := p.Lookup(key); ok {
		return v
	}
	return def
}

// Int64 returns the value for key parsed as an integer, or def when unset.
func (p *Params) Int64(key string, def int64) (int64, error) {
	v, ok := p.Lookup(key)
	if !ok {
		return def, nil
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return def, fmt.Errorf("param %q: %w", key, err)
	}
	return n, nil
}

// Uint64 returns the value for key parsed as an unsigned integer, or def when unset.
func (p *Params) Uint64(key string, def uint64) (uint64, error) {
	v, ok := p.Lookup(key)
	if !ok {
		return def, nil
	}
	n, err := cast.ToUint64E(v)
	if err != nil {
		return def, fmt.Errorf("param %q: %w", key, err)
	}
	return n, nil
}

// Float64 returns the value for key parsed as a float, or def when unset.
func (p *Params) Float64(key string, def float64) (float64, error) {
	v, ok := p.Lookup(key)
	if !ok {
		return def, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return def, fmt.Errorf("param %q: %w", key, err)
	}
	return f, nil
}

// Bool returns the value for key parsed as a boolean, or def when unset.
func (p *Params) Bool(key string, def bool) (bool, error) {
	v, ok := p.Lookup(key)
	if !ok {
		return def, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def, fmt.Errorf("param %q: %w", key, err)
	}
	return b, nil
}

// Merge returns a new set holding p's keys overridden by other's keys.
// Neither input is modified.
func (p *Params) Merge(other *Params) *Params {
	values := make(map[string]string, p.Len()+other.Len())
	if p != nil {
		maps.Copy(values, p.values)
	}
	if other != nil {
		maps.Copy(values, other.values)
	}
	return &Params{values: values}
}

// Scoped returns the keys that start with prefix, with the prefix removed.
func (p *Params) Scoped(prefix string) *Params {
	values := make(map[string]string)
	if p != nil {
		for k, v := range p.values {
			if len(k) > len(prefix) && k[:len(prefix)] == prefix {
				values[k[len(prefix):]] = v
			}
		}
	}
	return &Params{values: values}
}
