package variant

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Property is one named setting sent to the engine.
type Property struct {
	Name  string
	Value Variant
}

// PropertyList is the ordered list of settings passed to the engine's SetProperties.
//
// The engine receives names and values as two index-correlated arrays so insertion order is preserved. Names are
// case-sensitive short tokens such as "x" (level), "m" (method), "he" (header encryption) or "em" (encryption method).
type PropertyList []Property

// ErrEmptyPropertyName is returned when adding a property without a name.
var ErrEmptyPropertyName = errors.New("property name must not be empty")

// Add appends a property, or replaces the value of an existing property with the same name in place.
func (l *PropertyList) Add(name string, value Variant) error {
	if name == "" {
		return ErrEmptyPropertyName
	}

	for i := range *l {
		if (*l)[i].Name == name {
			(*l)[i].Value = value
			return nil
		}
	}

	*l = append(*l, Property{Name: name, Value: value})
	return nil
}

// Get returns the value of the named property.
func (l PropertyList) Get(name string) (Variant, bool) {
	for _, p := range l {
		if p.Name == name {
			return p.Value, true
		}
	}

	return Variant{}, false
}

// Arrays splits the list into the index-correlated name and value arrays expected by the engine.
func (l PropertyList) Arrays() (names []string, values []Variant) {
	names = make([]string, len(l))
	values = make([]Variant, len(l))
	for i, p := range l {
		names[i], values[i] = p.Name, p.Value
	}

	return
}

// ParseProperty converts a textual "name=value" setting into a typed Property.
//
// Decimal integers become Uint32, "on"/"off"/"true"/"false" become Bool, an empty value becomes Empty (which the
// engine treats as "enable" for switches such as "he"), and anything else stays a String.
func ParseProperty(name, value string) (Property, error) {
	if name = strings.TrimSpace(name); name == "" {
		return Property{}, ErrEmptyPropertyName
	}

	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "":
		return Property{Name: name}, nil
	case "on", "true":
		return Property{Name: name, Value: FromBool(true)}, nil
	case "off", "false":
		return Property{Name: name, Value: FromBool(false)}, nil
	}

	if u, err := strconv.ParseUint(value, 10, 32); err == nil {
		return Property{Name: name, Value: FromUint32(uint32(u))}, nil
	}

	return Property{Name: name, Value: FromString(value)}, nil
}

// ParsePropertyList parses "name=value" pairs in order.
func ParsePropertyList(pairs []string) (l PropertyList, err error) {
	for _, pair := range pairs {
		name, value, _ := strings.Cut(pair, "=")

		p, err := ParseProperty(name, value)
		if err != nil {
			return nil, fmt.Errorf(`parse property "%s" error: %w`, pair, err)
		}

		if err = l.Add(p.Name, p.Value); err != nil {
			return nil, err
		}
	}

	return
}
