// Package envconf fills a struct from environment variables.
//
// Tags understood on a field:
//
//	env:"NAME"          variable to read; required unless envDefault is present
//	envDefault:"value"  used when NAME is unset; an empty default keeps the zero value
//	envSeparator:";"    item separator for slice fields, "," when omitted
//
// Fields without an env tag are descended into when they are structs or
// pointers to structs. Anything implementing encoding.TextUnmarshaler
// (slog.Level, decimal.Decimal, ...) parses itself.
package envconf

import (
	"encoding"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingRequired = errors.New("missing required environment variable")
	ErrUnsupportedType = errors.New("unsupported field type")
	ErrInvalidTarget   = errors.New("target must be a non-nil pointer to a struct")
)

const (
	tagName      = "env"
	tagDefault   = "envDefault"
	tagSeparator = "envSeparator"

	defaultSeparator = ","
)

var durationType = reflect.TypeOf(time.Duration(0))

func Load(dst any) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return ErrInvalidTarget
	}

	return loadStruct(v.Elem())
}

func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		fv := v.Field(i)

		name := sf.Tag.Get(tagName)
		if name == "" || name == "-" {
			err := descend(fv)
			if err != nil {
				return fmt.Errorf("%s: %w", sf.Name, err)
			}

			continue
		}

		raw, set, err := resolve(sf, name)
		if err != nil {
			return err
		}

		if !set {
			continue
		}

		sep := sf.Tag.Get(tagSeparator)
		if sep == "" {
			sep = defaultSeparator
		}

		err = assign(fv, raw, sep)
		if err != nil {
			return fmt.Errorf("%s (field %q): %w", name, sf.Name, err)
		}
	}

	return nil
}

// descend loads nested structs, allocating nil struct pointers on the way.
func descend(fv reflect.Value) error {
	switch {
	case fv.Kind() == reflect.Struct:
		return loadStruct(fv)
	case fv.Kind() == reflect.Pointer && fv.Type().Elem().Kind() == reflect.Struct:
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}

		return loadStruct(fv.Elem())
	default:
		return nil
	}
}

// resolve returns the text for a tagged field. set is false when the
// variable is unset and the default is empty.
func resolve(sf reflect.StructField, name string) (raw string, set bool, err error) {
	raw, ok := os.LookupEnv(name)
	if ok {
		return raw, true, nil
	}

	def, ok := sf.Tag.Lookup(tagDefault)
	if !ok {
		return "", false, fmt.Errorf("%w: %s (field %q)", ErrMissingRequired, name, sf.Name)
	}

	return def, def != "", nil
}

func assign(fv reflect.Value, raw, sep string) error {
	if fv.CanAddr() {
		u, ok := fv.Addr().Interface().(encoding.TextUnmarshaler)
		if ok {
			return u.UnmarshalText([]byte(raw))
		}
	}

	switch fv.Kind() {
	case reflect.Pointer:
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}

		return assign(fv.Elem(), raw, sep)
	case reflect.Slice:
		return assignList(fv, raw, sep)
	default:
		return assignScalar(fv, raw)
	}
}

// assignList splits raw on sep; blank items are dropped.
func assignList(fv reflect.Value, raw, sep string) error {
	parts := strings.Split(raw, sep)
	list := reflect.MakeSlice(fv.Type(), 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		item := reflect.New(fv.Type().Elem()).Elem()

		err := assign(item, p, sep)
		if err != nil {
			return fmt.Errorf("item %q: %w", p, err)
		}

		list = reflect.Append(list, item)
	}

	fv.Set(list)

	return nil
}

func assignScalar(fv reflect.Value, raw string) error {
	var err error

	switch {
	case fv.Kind() == reflect.String:
		fv.SetString(raw)
	case fv.Kind() == reflect.Bool:
		var b bool
		if b, err = strconv.ParseBool(raw); err == nil {
			fv.SetBool(b)
		}
	case fv.Type() == durationType:
		var d time.Duration
		if d, err = time.ParseDuration(raw); err == nil {
			fv.SetInt(int64(d))
		}
	case fv.CanInt():
		var n int64
		if n, err = strconv.ParseInt(raw, 10, fv.Type().Bits()); err == nil {
			fv.SetInt(n)
		}
	case fv.CanUint():
		var n uint64
		if n, err = strconv.ParseUint(raw, 10, fv.Type().Bits()); err == nil {
			fv.SetUint(n)
		}
	case fv.CanFloat():
		var f float64
		if f, err = strconv.ParseFloat(raw, fv.Type().Bits()); err == nil {
			fv.SetFloat(f)
		}
	default:
		return fmt.Errorf("%s: %w", fv.Type(), ErrUnsupportedType)
	}

	return err
}
