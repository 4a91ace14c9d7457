package util

import (
	"reflect"

	"github.com/pkg/errors"
)

// IsStructInitialized checks if all fields of the given struct pointer are
// initialized (non-nil), skipping fields tagged with `wire:"-"`.
// It is used to determine server readiness before accepting requests.
func IsStructInitialized(s interface{}) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return errors.New("not a struct")
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Tag.Get("wire") == "-" {
			continue
		}

		value := v.Field(i)
		switch value.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			if value.IsNil() {
				return errors.Errorf("field %s is not initialized", field.Name)
			}
		default:
			// value types are considered initialized by construction
		}
	}

	return nil
}
