// Package mapper converts raw JSON values into typed domain models.
//
// A raw value is anything produced by decoding a JSON document into the "any" type:
// map[string]any, []any, string, float64, bool or nil.
// A single object is mapped strictly, see Object, a list is mapped leniently, see List.
package mapper

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrInvalidShape is returned if the raw value is not an object or a list, as expected.
var ErrInvalidShape = errors.New("unexpected JSON shape")

// Mapper maps a raw JSON value to the target, the target must be a pointer.
type Mapper interface {
	Map(raw any, target any) error
}

// Validator can be implemented by a domain model to check its own invariants after mapping.
type Validator interface {
	Validate() error
}

// JSONMapper maps raw values by the JSON encoding round trip.
// Struct targets are validated by the "validate" tags, for example `validate:"required"`.
type JSONMapper struct {
	validate *validator.Validate
}

// MappingError is returned by the JSONMapper if the raw value does not match the target type.
type MappingError struct {
	Type string
	err  error
}

func NewJSONMapper() *JSONMapper {
	return &JSONMapper{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (e *MappingError) Error() string {
	return fmt.Sprintf(`cannot map JSON to "%s": %s`, e.Type, e.err)
}

func (e *MappingError) Unwrap() error {
	return e.err
}

func (m *JSONMapper) Map(raw any, target any) error {
	targetType := reflect.TypeOf(target)
	if targetType == nil || targetType.Kind() != reflect.Pointer {
		panic(fmt.Errorf("target must be a pointer, found %T", target))
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return &MappingError{Type: targetType.Elem().String(), err: err}
	}

	if err := json.Unmarshal(data, target); err != nil {
		return &MappingError{Type: targetType.Elem().String(), err: err}
	}

	// Required fields and other tags
	if targetType.Elem().Kind() == reflect.Struct {
		if err := m.validate.Struct(target); err != nil {
			return &MappingError{Type: targetType.Elem().String(), err: err}
		}
	}

	// Custom validation
	if v, ok := target.(Validator); ok {
		if err := v.Validate(); err != nil {
			return &MappingError{Type: targetType.Elem().String(), err: err}
		}
	}

	return nil
}

// Object maps a raw JSON object to T.
// If the raw value is not an object or it cannot be mapped, the zero value and an error are returned.
func Object[T any](m Mapper, raw any) (T, error) {
	var out T
	if _, ok := raw.(map[string]any); !ok {
		return out, fmt.Errorf(`%w: expected object, found %s`, ErrInvalidShape, ShapeOf(raw))
	}
	if err := m.Map(raw, &out); err != nil {
		var empty T
		return empty, err
	}
	return out, nil
}

// List maps a raw JSON array of objects to []T.
// Elements which cannot be mapped are dropped, order of the others is preserved.
// An error is returned only if the raw value is not an array.
func List[T any](m Mapper, raw any) ([]T, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf(`%w: expected array, found %s`, ErrInvalidShape, ShapeOf(raw))
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		if _, ok := item.(map[string]any); !ok {
			continue
		}
		var v T
		if err := m.Map(item, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// ShapeOf returns JSON type name of the raw value.
func ShapeOf(raw any) string {
	switch raw.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64, jsoniter.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", raw)
	}
}
