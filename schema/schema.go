// Package schema derives tool parameter schemas from Go structs via
// reflection and validates model-supplied arguments against them.
package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/parleyhq/parley/llm"
)

// ValidationError reports an argument that does not match the schema.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// FromStruct derives a parameter schema from a struct type. json tags name
// the properties, description tags document them, and a field is optional
// when it is a pointer or carries omitempty. Non-struct types produce an
// empty object schema.
func FromStruct(structType any) llm.ToolSchema {
	t := reflect.TypeOf(structType)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return llm.ToolSchema{Type: "object", Properties: map[string]interface{}{}}
	}

	properties, required := structProperties(t, map[reflect.Type]bool{t: true})
	schema := llm.ToolSchema{Type: "object", Properties: properties}
	if len(required) > 0 {
		schema.Required = required
	}
	return schema
}

func structProperties(t reflect.Type, seen map[reflect.Type]bool) (map[string]interface{}, []string) {
	properties := make(map[string]interface{})
	var required []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		fieldName := field.Name
		if jsonTag != "" {
			if name := strings.Split(jsonTag, ",")[0]; name != "" {
				fieldName = name
			}
		}

		fieldSchema := propertySchema(field.Type, seen)
		if description := field.Tag.Get("description"); description != "" {
			fieldSchema["description"] = description
		}
		properties[fieldName] = fieldSchema

		if !hasOmitEmpty(jsonTag) && field.Type.Kind() != reflect.Ptr {
			required = append(required, fieldName)
		}
	}

	return properties, required
}

func propertySchema(t reflect.Type, seen map[reflect.Type]bool) map[string]interface{} {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return map[string]interface{}{"type": "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]interface{}{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]interface{}{"type": "number"}
	case reflect.Bool:
		return map[string]interface{}{"type": "boolean"}
	case reflect.Slice, reflect.Array:
		return map[string]interface{}{"type": "array", "items": propertySchema(t.Elem(), seen)}
	case reflect.Struct:
		// Cut recursion on self-referential types.
		if seen[t] {
			return map[string]interface{}{"type": "object"}
		}
		seen[t] = true
		properties, required := structProperties(t, seen)
		delete(seen, t)
		nested := map[string]interface{}{"type": "object", "properties": properties}
		if len(required) > 0 {
			nested["required"] = required
		}
		return nested
	case reflect.Map:
		return map[string]interface{}{"type": "object"}
	default:
		return map[string]interface{}{"type": "string"}
	}
}

func hasOmitEmpty(tag string) bool {
	parts := strings.Split(tag, ",")
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "omitempty" {
			return true
		}
	}
	return false
}

// Validate checks required-field presence and property types. Fields the
// schema does not declare pass through unchecked.
func Validate(args map[string]interface{}, schema llm.ToolSchema) error {
	for _, req := range schema.Required {
		if _, exists := args[req]; !exists {
			return &ValidationError{Field: req, Message: "required field is missing"}
		}
	}

	for name, value := range args {
		propSchema, exists := schema.Properties[name]
		if !exists {
			continue
		}
		propMap, ok := propSchema.(map[string]interface{})
		if !ok {
			continue
		}
		expectedType, _ := propMap["type"].(string)
		if !isValidType(value, expectedType) {
			return &ValidationError{
				Field:   name,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", expectedType, value),
			}
		}
	}

	return nil
}

func isValidType(value any, expectedType string) bool {
	if value == nil {
		return true
	}

	switch expectedType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			// JSON decoding produces float64 for every number.
			return v == float64(int64(v))
		}
		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
			float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}
