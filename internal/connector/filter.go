package connector

import (
	"sort"
	"strings"

	"github.com/go-ldap/ldap/v3"

	ldapclient "github.com/isometry/terraform-provider-ldapmodel/internal/ldap"
)

// fallbackFilter matches every entry.
const fallbackFilter = "(objectClass=*)"

// Predicate is a flat field-to-value equality match; clauses are ANDed.
type Predicate map[string]any

// Filter carries the optional predicate of an All call.
type Filter struct {
	Where Predicate
}

// FilterBuilder renders predicates into directory filter expressions.
type FilterBuilder struct {
	mapper        *Mapper
	defaultFilter string
	guid          *ldapclient.GUIDHandler
}

// NewFilterBuilder creates a builder. defaultFilter applies to models
// without a base filter of their own.
func NewFilterBuilder(mapper *Mapper, defaultFilter string) *FilterBuilder {
	if defaultFilter == "" {
		defaultFilter = fallbackFilter
	}
	return &FilterBuilder{
		mapper:        mapper,
		defaultFilter: defaultFilter,
		guid:          ldapclient.NewGUIDHandler(),
	}
}

// Build renders predicate for modelName. Clauses follow mapping declaration
// order; a single clause is returned bare and several are wrapped in (&...).
// Any unmapped key fails the whole build.
func (b *FilterBuilder) Build(predicate Predicate, modelName string) (string, error) {
	model, err := b.mapper.Model(modelName)
	if err != nil {
		return "", err
	}

	if len(predicate) == 0 {
		return b.BaseFilter(model), nil
	}

	keys := make([]string, 0, len(predicate))
	for key := range predicate {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !model.Mapping.Has(key) {
			return "", &UnknownFieldError{Model: modelName, Field: key}
		}
	}

	clauses := make([]string, 0, len(predicate))
	for _, fm := range model.Mapping {
		value, ok := predicate[fm.Field]
		if !ok {
			continue
		}

		clause, err := b.Equality(modelName, fm.Field, fm.Attribute, value)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, clause)
	}

	if len(clauses) == 1 {
		return clauses[0], nil
	}
	return "(&" + strings.Join(clauses, "") + ")", nil
}

// BaseFilter returns the filter used when no predicate is given.
func (b *FilterBuilder) BaseFilter(model *ModelMapping) string {
	if model != nil && model.BaseFilter != "" {
		return model.BaseFilter
	}
	return b.defaultFilter
}

// Equality renders one escaped (attr=value) clause. objectGUID values are
// encoded to their binary form.
func (b *FilterBuilder) Equality(modelName, field, attr string, value any) (string, error) {
	rendered, ok := filterValue(value)
	if !ok {
		return "", &ValidationError{Model: modelName, Field: field, Message: "match value must be a non-empty scalar"}
	}

	if strings.EqualFold(attr, "objectGUID") {
		encoded, err := b.guid.FilterValue(rendered)
		if err != nil {
			return "", &ValidationError{Model: modelName, Field: field, Message: err.Error()}
		}
		return "(" + attr + "=" + encoded + ")", nil
	}

	return "(" + attr + "=" + ldap.EscapeFilter(rendered) + ")", nil
}

// filterValue renders a match value. Unlike payload values, false and zero
// are legitimate match values here; only nil, "" and collections are rejected.
func filterValue(value any) (string, bool) {
	switch v := value.(type) {
	case bool:
		if v {
			return "TRUE", true
		}
		return "FALSE", true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		if s, ok := renderScalar(v); ok {
			return s, true
		}
		return "0", true
	}

	return renderScalar(value)
}
