// Package flagx 用结构体 tag 声明 cobra 命令的 flag
//
//	type SimulateRequest struct {
//	    Resource string        `flag:"resource,r" usage:"资源名" required:"true"`
//	    Rate     float64       `flag:"rate" usage:"每秒请求数" default:"50"`
//	    Duration time.Duration `flag:"duration,d" default:"5s"`
//	}
//
//	var req SimulateRequest
//	_ = flagx.BindFlags(cmd, &req)
//	// RunE 中
//	_ = flagx.ParseFlags(cmd, &req)
package flagx

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var durationType = reflect.TypeOf(time.Duration(0))

type flagTag struct {
	name     string
	short    string
	usage    string
	def      string
	required bool
}

func parseTag(field reflect.StructField) (flagTag, bool) {
	raw := field.Tag.Get("flag")
	if raw == "" {
		return flagTag{}, false
	}
	parts := strings.SplitN(raw, ",", 2)
	tag := flagTag{
		name:     parts[0],
		usage:    field.Tag.Get("usage"),
		def:      field.Tag.Get("default"),
		required: field.Tag.Get("required") == "true",
	}
	if len(parts) > 1 {
		tag.short = parts[1]
	}
	return tag, true
}

func structValue(target interface{}) (reflect.Value, error) {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("target must be a pointer to struct")
	}
	return v.Elem(), nil
}

// BindFlags 按字段 tag 在 cmd 上注册 flag
func BindFlags(cmd *cobra.Command, target interface{}) error {
	v, err := structValue(target)
	if err != nil {
		return err
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag, ok := parseTag(field)
		if !ok {
			continue
		}
		if err := registerFlag(cmd, field.Type, tag); err != nil {
			return fmt.Errorf("bind field %s: %w", field.Name, err)
		}
		if tag.required {
			if err := cmd.MarkFlagRequired(tag.name); err != nil {
				return err
			}
		}
	}
	return nil
}

func registerFlag(cmd *cobra.Command, typ reflect.Type, tag flagTag) error {
	flags := cmd.Flags()
	if typ == durationType {
		def, err := parseDefault(tag.def, time.ParseDuration)
		if err != nil {
			return err
		}
		flags.DurationP(tag.name, tag.short, def, tag.usage)
		return nil
	}

	switch typ.Kind() {
	case reflect.String:
		flags.StringP(tag.name, tag.short, tag.def, tag.usage)
	case reflect.Int:
		def, err := parseDefault(tag.def, strconv.Atoi)
		if err != nil {
			return err
		}
		flags.IntP(tag.name, tag.short, def, tag.usage)
	case reflect.Int64:
		def, err := parseDefault(tag.def, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
		if err != nil {
			return err
		}
		flags.Int64P(tag.name, tag.short, def, tag.usage)
	case reflect.Float64:
		def, err := parseDefault(tag.def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
		if err != nil {
			return err
		}
		flags.Float64P(tag.name, tag.short, def, tag.usage)
	case reflect.Bool:
		def, err := parseDefault(tag.def, strconv.ParseBool)
		if err != nil {
			return err
		}
		flags.BoolP(tag.name, tag.short, def, tag.usage)
	case reflect.Slice:
		if typ.Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type: %s", typ.Elem().Kind())
		}
		var def []string
		if tag.def != "" {
			def = strings.Split(tag.def, ",")
		}
		flags.StringSliceP(tag.name, tag.short, def, tag.usage)
	default:
		return fmt.Errorf("unsupported field type: %s", typ.Kind())
	}
	return nil
}

func parseDefault[T any](raw string, parse func(string) (T, error)) (T, error) {
	var zero T
	if raw == "" {
		return zero, nil
	}
	v, err := parse(raw)
	if err != nil {
		return zero, fmt.Errorf("invalid default %q: %w", raw, err)
	}
	return v, nil
}

// ParseFlags 把 cmd 上的 flag 值写回结构体，类似 gin 的 ShouldBind
func ParseFlags(cmd *cobra.Command, target interface{}) error {
	v, err := structValue(target)
	if err != nil {
		return err
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag, ok := parseTag(field)
		if !ok || !v.Field(i).CanSet() {
			continue
		}
		if err := setField(cmd, v.Field(i), tag.name); err != nil {
			return fmt.Errorf("parse field %s: %w", field.Name, err)
		}
	}
	return nil
}

func setField(cmd *cobra.Command, field reflect.Value, name string) error {
	flags := cmd.Flags()
	if field.Type() == durationType {
		val, err := flags.GetDuration(name)
		if err != nil {
			return err
		}
		field.SetInt(int64(val))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		val, err := flags.GetString(name)
		if err != nil {
			return err
		}
		field.SetString(val)
	case reflect.Int:
		val, err := flags.GetInt(name)
		if err != nil {
			return err
		}
		field.SetInt(int64(val))
	case reflect.Int64:
		val, err := flags.GetInt64(name)
		if err != nil {
			return err
		}
		field.SetInt(val)
	case reflect.Float64:
		val, err := flags.GetFloat64(name)
		if err != nil {
			return err
		}
		field.SetFloat(val)
	case reflect.Bool:
		val, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		field.SetBool(val)
	case reflect.Slice:
		val, err := flags.GetStringSlice(name)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(val))
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}
