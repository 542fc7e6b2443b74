// Package helpers converts between Terraform framework values and the plain
// Go values carried by connector records and predicates.
package helpers

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/types"
)

// MultiValueSeparator joins multi-valued attributes in flattened string maps.
const MultiValueSeparator = ","

// TerraformValueToGo converts a Terraform attr.Value to a Go value.
// Collections become []any or map[string]any. Returns nil for null values
// and an error for unknown values.
func TerraformValueToGo(ctx context.Context, value attr.Value) (any, error) {
	if value.IsNull() {
		return nil, nil
	}
	if value.IsUnknown() {
		return nil, fmt.Errorf("cannot process unknown values")
	}

	switch v := value.(type) {
	case types.String:
		return v.ValueString(), nil
	case types.Int64:
		return v.ValueInt64(), nil
	case types.Float64:
		return v.ValueFloat64(), nil
	case types.Bool:
		return v.ValueBool(), nil
	case types.List:
		return elementsToGo(ctx, v.Elements())
	case types.Set:
		return elementsToGo(ctx, v.Elements())
	case types.Map:
		result := make(map[string]any, len(v.Elements()))
		for key, elem := range v.Elements() {
			goVal, err := TerraformValueToGo(ctx, elem)
			if err != nil {
				return nil, fmt.Errorf("key %s: %w", key, err)
			}
			result[key] = goVal
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", value)
	}
}

func elementsToGo(ctx context.Context, elements []attr.Value) ([]any, error) {
	result := make([]any, len(elements))
	for i, elem := range elements {
		goVal, err := TerraformValueToGo(ctx, elem)
		if err != nil {
			return nil, err
		}
		result[i] = goVal
	}
	return result, nil
}

// MapToGo converts a Terraform map to a Go map. A null map yields an empty,
// non-nil result.
func MapToGo(ctx context.Context, value types.Map) (map[string]any, error) {
	if value.IsNull() {
		return map[string]any{}, nil
	}

	goVal, err := TerraformValueToGo(ctx, value)
	if err != nil {
		return nil, err
	}

	result, ok := goVal.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected map, got %T", goVal)
	}
	return result, nil
}

// FlattenValue renders a record value as a single string; multi-valued
// attributes are joined with MultiValueSeparator.
func FlattenValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, MultiValueSeparator)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, FlattenValue(item))
		}
		return strings.Join(parts, MultiValueSeparator)
	default:
		return fmt.Sprint(v)
	}
}

// StringMapValue converts a record to a Terraform map of strings.
func StringMapValue(ctx context.Context, record map[string]any) (types.Map, diag.Diagnostics) {
	flat := make(map[string]string, len(record))
	for key, value := range record {
		flat[key] = FlattenValue(value)
	}
	return types.MapValueFrom(ctx, types.StringType, flat)
}
