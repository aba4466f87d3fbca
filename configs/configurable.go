package configs

import "reflect"

// Configurable marks types whose value can be overridden by a config key.
type Configurable interface {
	ConfigKey() string
}

var configurableType = reflect.TypeFor[Configurable]()

// ConfigurableTypes filters the given types down to those implementing Configurable.
func ConfigurableTypes(types ...reflect.Type) (ret []reflect.Type) {
	for _, t := range types {
		if t.Implements(configurableType) {
			ret = append(ret, t)
		}
	}
	return
}
