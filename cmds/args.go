package cmds

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/reusee/scisandbox/vars"
)

var (
	errorType           = reflect.TypeFor[error]()
	durationType        = reflect.TypeFor[time.Duration]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// parseArg converts the first word of args to a value of type t.
// Pointer types are optional and become a pointer to the zero value when no word is left.
func parseArg(t reflect.Type, args []string) (reflect.Value, error) {
	if t.Kind() == reflect.Pointer {
		if len(args) == 0 {
			return reflect.New(t.Elem()), nil
		}
		elem, err := parseArg(t.Elem(), args)
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	}
	if len(args) == 0 {
		return reflect.Value{}, fmt.Errorf("expecting %v argument, got nothing", t)
	}
	str := args[0]
	ret := reflect.New(t).Elem()

	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		if err := ret.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(str)); err != nil {
			return ret, fmt.Errorf("convert %s to %v: %w", str, t, err)
		}
		return ret, nil
	}

	if t == durationType {
		d, err := time.ParseDuration(str)
		if err != nil {
			return ret, fmt.Errorf("convert %s to duration: %w", str, err)
		}
		ret.SetInt(int64(d))
		return ret, nil
	}

	var err error
	switch t.Kind() {
	case reflect.String:
		ret.SetString(str)
	case reflect.Bool:
		var v bool
		v, err = vars.ParseBool(str)
		ret.SetBool(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var v int64
		v, err = strconv.ParseInt(str, 10, t.Bits())
		ret.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var v uint64
		v, err = strconv.ParseUint(str, 10, t.Bits())
		ret.SetUint(v)
	case reflect.Float32, reflect.Float64:
		var v float64
		v, err = strconv.ParseFloat(str, t.Bits())
		ret.SetFloat(v)
	default:
		return ret, fmt.Errorf("unsupported type: %v", t)
	}
	if err != nil {
		return ret, fmt.Errorf("convert %s to %v: %w", str, t, err)
	}
	return ret, nil
}
