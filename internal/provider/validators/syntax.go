// Package validators holds schema validators for directory syntax.
package validators

import (
	"context"
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
)

var _ validator.String = syntaxValidator{}

// syntaxValidator checks a string with a go-ldap parser.
type syntaxValidator struct {
	summary     string
	description string
	parse       func(string) error
}

func (v syntaxValidator) Description(_ context.Context) string {
	return v.description
}

func (v syntaxValidator) MarkdownDescription(ctx context.Context) string {
	return v.Description(ctx)
}

func (v syntaxValidator) ValidateString(ctx context.Context, request validator.StringRequest, response *validator.StringResponse) {
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	value := request.ConfigValue.ValueString()

	if value == "" {
		response.Diagnostics.AddAttributeError(
			request.Path,
			v.summary,
			fmt.Sprintf("The value %q is not valid: value cannot be empty", value),
		)
		return
	}

	if err := v.parse(value); err != nil {
		response.Diagnostics.AddAttributeError(
			request.Path,
			v.summary,
			fmt.Sprintf("The value %q is not valid: %s", value, err.Error()),
		)
	}
}

// IsValidDN returns a validator which ensures that any configured
// attribute value is a valid Distinguished Name (DN).
//
// Unknown values and null values are skipped from validation.
func IsValidDN() validator.String {
	return syntaxValidator{
		summary:     "Invalid Distinguished Name",
		description: "value must be a valid Distinguished Name (DN)",
		parse: func(s string) error {
			_, err := ldap.ParseDN(s)
			return err
		},
	}
}

// IsValidFilter returns a validator which ensures that any configured
// attribute value compiles as an LDAP search filter.
func IsValidFilter() validator.String {
	return syntaxValidator{
		summary:     "Invalid Search Filter",
		description: "value must be a valid LDAP search filter",
		parse: func(s string) error {
			_, err := ldap.CompileFilter(s)
			return err
		},
	}
}
