package plugin

import (
	"fmt"
	"sort"
	"strconv"
)

// Option types.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
)

// Option is one configurable plugin setting.
type Option struct {
	Name        string `yaml:"name"`
	Value       string `yaml:"value"`
	Type        string `yaml:"type,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// OptionList is an ordered set of options.
type OptionList []Option

// OptionsFromMap builds a list from name/value pairs, sorted by name.
func OptionsFromMap(m map[string]string) OptionList {
	l := make(OptionList, 0, len(m))
	for name, value := range m {
		l = append(l, Option{Name: name, Value: value})
	}
	sort.Slice(l, func(i, j int) bool { return l[i].Name < l[j].Name })
	return l
}

// Get returns the option called name.
func (l OptionList) Get(name string) (Option, bool) {
	for _, o := range l {
		if o.Name == name {
			return o, true
		}
	}
	return Option{}, false
}

func (l OptionList) String(name string) string {
	o, _ := l.Get(name)
	return o.Value
}

func (l OptionList) Int(name string) (int, error) {
	o, ok := l.Get(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownOption, name)
	}
	n, err := strconv.Atoi(o.Value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidOption, name, o.Value)
	}
	return n, nil
}

func (l OptionList) Bool(name string) (bool, error) {
	o, ok := l.Get(name)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownOption, name)
	}
	b, err := strconv.ParseBool(o.Value)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidOption, name, o.Value)
	}
	return b, nil
}

// Merge applies given on top of schema. Names missing from schema are
// rejected, and values are checked against the schema type.
func Merge(schema, given OptionList) (OptionList, error) {
	out := append(OptionList(nil), schema...)
	for _, g := range given {
		i := -1
		for j := range out {
			if out[j].Name == g.Name {
				i = j
				break
			}
		}
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownOption, g.Name)
		}
		if err := checkType(out[i].Type, g); err != nil {
			return nil, err
		}
		out[i].Value = g.Value
	}
	return out, nil
}

func checkType(typ string, o Option) error {
	var err error
	switch typ {
	case TypeInteger:
		_, err = strconv.Atoi(o.Value)
	case TypeBoolean:
		_, err = strconv.ParseBool(o.Value)
	}
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not %s", ErrInvalidOption, o.Name, o.Value, typ)
	}
	return nil
}
