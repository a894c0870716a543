package cf

import (
	"fmt"
	"github.com/pkg/errors"
	"reflect"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load binds the values in data onto the exported fields of the struct pointed to by cf. Keys are taken from the `cf`
// struct tag, falling back to the field name. Keys missing from data leave the field untouched.
//
func Load(data map[string]interface{}, cf interface{}) error {
	cfV := reflect.ValueOf(cf)
	if cfV.Kind() != reflect.Ptr {
		return errors.Errorf("cf type [%s] not a pointer", cfV.Type())
	}
	cfV = cfV.Elem()
	if cfV.Kind() != reflect.Struct {
		return errors.Errorf("cf type [%s] not struct", cfV.Type())
	}
	for i := 0; i < cfV.NumField(); i++ {
		field := cfV.Field(i)
		if !field.CanSet() {
			continue
		}
		key := keyName(cfV.Type().Field(i))
		v, found := data[key]
		if !found {
			continue
		}
		if err := set(field, v); err != nil {
			return errors.Wrapf(err, "field '%s'", key)
		}
	}
	return nil
}

func set(field reflect.Value, v interface{}) error {
	if field.Type() == durationType {
		d, err := toDuration(v)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64:
		j, ok := toInt(v)
		if !ok {
			return mismatch(field, v)
		}
		if field.OverflowInt(j) {
			return errors.Errorf("value [%d] overflows [%s]", j, field.Type())
		}
		field.SetInt(j)

	case reflect.Float64:
		switch f := v.(type) {
		case float64:
			field.SetFloat(f)
		case int:
			field.SetFloat(float64(f))
		case int64:
			field.SetFloat(float64(f))
		default:
			return mismatch(field, v)
		}

	case reflect.Bool:
		b, ok := v.(bool)
		if !ok {
			return mismatch(field, v)
		}
		field.SetBool(b)

	case reflect.String:
		s, ok := v.(string)
		if !ok {
			return mismatch(field, v)
		}
		field.SetString(s)

	default:
		return errors.Errorf("unsupported field type [%s]", field.Type())
	}
	return nil
}

func toInt(v interface{}) (int64, bool) {
	switch j := v.(type) {
	case int:
		return int64(j), true
	case int32:
		return int64(j), true
	case int64:
		return j, true
	case uint64:
		return int64(j), true
	default:
		return 0, false
	}
}

// toDuration accepts either a duration string ("250ms") or a bare integer in milliseconds.
//
func toDuration(v interface{}) (time.Duration, error) {
	if s, ok := v.(string); ok {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid duration [%s]", s)
		}
		return d, nil
	}
	if ms, ok := toInt(v); ok {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return 0, errors.Errorf("type mismatch, got [%s], expected duration", reflect.TypeOf(v))
}

func mismatch(field reflect.Value, v interface{}) error {
	return errors.Errorf("type mismatch, got [%s], expected [%s]", reflect.TypeOf(v), field.Type())
}

func Dump(label string, cf interface{}) string {
	cfV := reflect.ValueOf(cf)
	if cfV.Kind() == reflect.Ptr {
		cfV = cfV.Elem()
	}
	if cfV.Kind() != reflect.Struct {
		return ""
	}
	out := label + " {\n"
	format := fmt.Sprintf("\t%%-%ds %%v\n", maxKeyLength(cfV))
	for i := 0; i < cfV.NumField(); i++ {
		if cfV.Field(i).CanInterface() {
			key := keyName(cfV.Type().Field(i))
			out += fmt.Sprintf(format, key, cfV.Field(i).Interface())
		}
	}
	out += "}\n"
	return out
}

func keyName(v reflect.StructField) string {
	key := v.Name
	tag := v.Tag.Get("cf")
	if tag != "" {
		key = tag
	}
	return key
}

func maxKeyLength(cfV reflect.Value) int {
	maxKeyLength := 0
	for i := 0; i < cfV.NumField(); i++ {
		if !cfV.Field(i).CanInterface() {
			continue
		}
		keyLength := len(keyName(cfV.Type().Field(i)))
		if keyLength > maxKeyLength {
			maxKeyLength = keyLength
		}
	}
	return maxKeyLength
}
