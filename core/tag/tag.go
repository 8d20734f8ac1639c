// Package tag 根据结构体的 default 标签填充零值字段。
package tag

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

const tagName = "default"

var (
	ErrNotStructPointer = errors.New("tag: target must be a non-nil pointer to struct")
	ErrUnsupportedType  = errors.New("tag: unsupported field type")
)

var durationType = reflect.TypeFor[time.Duration]()

// ApplyDefaults 为零值字段设置 default 标签中的值，嵌套结构体和结构体指针递归处理。
//
//	type Config struct {
//	    TTL  time.Duration `default:"5m"`
//	    Port int           `default:"8080"`
//	}
func ApplyDefaults(target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return ErrNotStructPointer
	}
	return applyStruct(v.Elem(), "")
}

func applyStruct(v reflect.Value, path string) error {
	t := v.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		fv := v.Field(i)
		if !fv.CanSet() {
			continue
		}
		name := field.Name
		if path != "" {
			name = path + "." + field.Name
		}

		switch {
		case fv.Kind() == reflect.Struct:
			if err := applyStruct(fv, name); err != nil {
				return err
			}
			continue
		case fv.Kind() == reflect.Pointer && field.Type.Elem().Kind() == reflect.Struct:
			if fv.IsNil() {
				fv.Set(reflect.New(field.Type.Elem()))
			}
			if err := applyStruct(fv.Elem(), name); err != nil {
				return err
			}
			continue
		}

		def, ok := field.Tag.Lookup(tagName)
		if !ok || !fv.IsZero() {
			continue
		}
		if err := set(fv, def); err != nil {
			return fmt.Errorf("tag: field %s default %q: %w", name, def, err)
		}
	}
	return nil
}

func set(v reflect.Value, s string) error {
	if v.Type() == durationType {
		d, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		v.SetInt(int64(d))
		return nil
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Slice:
		parts := strings.Split(s, ",")
		out := reflect.MakeSlice(v.Type(), len(parts), len(parts))
		for i, p := range parts {
			if err := set(out.Index(i), strings.TrimSpace(p)); err != nil {
				return err
			}
		}
		v.Set(out)
	default:
		return ErrUnsupportedType
	}
	return nil
}
