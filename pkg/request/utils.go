package request

import (
	jsonlib "encoding/json"
	"fmt"
	"maps"
	"net/url"
	"reflect"
	"strings"

	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/spf13/cast"
)

// ToFormBody converts a JSON like map to form values, any type is mapped to string.
// Slices are expanded to repeated "key[]" entries and maps to "key[subKey]" entries.
func ToFormBody(in map[string]any) (out url.Values) {
	out = make(url.Values)
	for k, v := range in {
		if v == nil {
			out.Set(k, "")
			continue
		}
		switch typed := v.(type) {
		case []string:
			for _, s := range typed {
				out.Add(k+"[]", s)
			}
		case []any:
			for _, s := range typed {
				out.Add(k+"[]", castToString(s))
			}
		case map[string]string:
			for i, s := range typed {
				out.Set(fmt.Sprintf("%s[%s]", k, i), s)
			}
		case map[string]any:
			for i, s := range typed {
				out.Set(fmt.Sprintf("%s[%s]", k, i), castToString(s))
			}
		default:
			out.Set(k, castToString(v))
		}
	}
	return out
}

// StructToMap converts a struct to values map.
// Only defined allowedFields are converted.
// If allowedFields = nil, then all fields are exported.
//
// Field name is read from `writeas` tag or from "json" tag as fallback.
// Field with tag `readonly:"true"` is ignored.
// Field with tag `writeoptional` is exported only if value is not empty.
func StructToMap(in any, allowedFields []string) (out map[string]any) {
	out = make(map[string]any)
	structToMap(reflect.ValueOf(in), out, allowedFields)
	return out
}

func structToMap(in reflect.Value, out map[string]any, allowedFields []string) {
	// Initialize
	for in.Kind() == reflect.Ptr || in.Kind() == reflect.Interface {
		in = in.Elem()
	}
	t := in.Type()

	// Convert allowed slice to map
	allowed := make(map[string]bool)
	for _, field := range allowedFields {
		allowed[field] = true
	}

	// Iterate over fields
	numFields := t.NumField()
	for i := range numFields {
		field := t.Field(i)
		fieldValue := in.Field(i)

		// Process embedded type
		if field.Anonymous {
			structToMap(fieldValue, out, allowedFields)
			continue
		}

		// Skip filed with tag `readonly:"true"`
		if field.Tag.Get("readonly") == "true" {
			continue
		}

		// Skip field with tag `writeoptional:"true"` and empty value
		if field.Tag.Get("writeoptional") == "true" && fieldValue.IsZero() {
			continue
		}

		// Get field name
		var fieldName string
		if v := field.Tag.Get("writeas"); v != "" {
			fieldName = v
		} else if v := strings.Split(field.Tag.Get("json"), ",")[0]; v != "" {
			fieldName = v
		} else {
			panic(fmt.Errorf(`field "%s" of %s has no json name`, field.Name, t.String()))
		}

		// Skip ignored fields
		if fieldName == "-" {
			continue
		}

		// Is allowed?
		if len(allowedFields) > 0 && !allowed[fieldName] {
			continue
		}

		// Ok, add to map
		out[fieldName] = fieldValue.Interface()
	}
}

func clonePathParams(in map[string]string) (out map[string]string) {
	out = make(map[string]string)
	maps.Copy(out, in)
	return out
}

func castToString(v any) string {
	// Ordered map
	if orderedMap, ok := v.(*orderedmap.OrderedMap); ok {
		// Standard json encoding library is used.
		// JsonIter lib returns non-compact JSON,
		// if custom OrderedMap.MarshalJSON method is used.
		out, err := jsonlib.Marshal(orderedMap)
		if err != nil {
			panic(fmt.Errorf(`cannot cast %T to string %w`, v, err))
		}
		return string(out)
	}

	// Other types
	if v, err := cast.ToStringE(v); err == nil {
		return v
	}

	// Nested slices and maps
	out, err := jsonlib.Marshal(v)
	if err != nil {
		panic(fmt.Errorf(`cannot cast %T to string %w`, v, err))
	}
	return string(out)
}
