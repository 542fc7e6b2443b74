package connector

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/go-ldap/ldap/v3"

	ldapclient "github.com/isometry/terraform-provider-ldapmodel/internal/ldap"
)

// Record is a model instance keyed by logical field name. Single-valued
// attributes are carried as string, multi-valued ones as []string.
type Record map[string]any

// DirectoryEntry maps directory attribute names to their values.
type DirectoryEntry map[string][]string

// Get returns the values of attr, matching the name case-insensitively.
func (e DirectoryEntry) Get(attr string) []string {
	if values, ok := e[attr]; ok {
		return values
	}
	for name, values := range e {
		if strings.EqualFold(name, attr) {
			return values
		}
	}
	return nil
}

// Delete removes attr, matching the name case-insensitively.
func (e DirectoryEntry) Delete(attr string) {
	for name := range e {
		if strings.EqualFold(name, attr) {
			delete(e, name)
		}
	}
}

// Mapper translates between directory entries and model records using an
// immutable mapping table.
type Mapper struct {
	models map[string]*ModelMapping
	guid   *ldapclient.GUIDHandler
	sid    *ldapclient.SIDHandler
}

// NewMapper creates a mapper over models. The caller must not modify models afterwards.
func NewMapper(models map[string]*ModelMapping) *Mapper {
	return &Mapper{
		models: models,
		guid:   ldapclient.NewGUIDHandler(),
		sid:    ldapclient.NewSIDHandler(),
	}
}

// Model returns the mapping for name.
func (m *Mapper) Model(name string) (*ModelMapping, error) {
	model, ok := m.models[name]
	if !ok || model == nil {
		return nil, &ConfigurationError{Model: name, Message: "mapping not found"}
	}
	return model, nil
}

// ToModel copies every mapped attribute present and non-empty in entry into a
// record under its logical field name. Absent attributes are omitted.
func (m *Mapper) ToModel(entry *ldap.Entry, modelName string) (Record, error) {
	model, err := m.Model(modelName)
	if err != nil {
		return nil, err
	}

	record := make(Record, len(model.Mapping))
	if entry == nil {
		return record, nil
	}

	for _, fm := range model.Mapping {
		values, err := m.attributeValues(entry, fm.Attribute)
		if err != nil {
			return nil, &ValidationError{Model: modelName, Field: fm.Field, Message: err.Error()}
		}

		switch len(values) {
		case 0:
		case 1:
			record[fm.Field] = values[0]
		default:
			record[fm.Field] = values
		}
	}

	return record, nil
}

// ToDirectoryEntry converts record into directory attributes. Empty values
// are never written. With includeObjectClass the model's fixed object
// classes are added, which only happens on create.
func (m *Mapper) ToDirectoryEntry(record Record, modelName string, includeObjectClass bool) (DirectoryEntry, error) {
	model, err := m.Model(modelName)
	if err != nil {
		return nil, err
	}

	if err := checkFields(record, model, modelName); err != nil {
		return nil, err
	}

	entry := make(DirectoryEntry, len(model.Mapping)+1)
	for _, fm := range model.Mapping {
		value, ok := record[fm.Field]
		if !ok {
			continue
		}
		if values := renderValues(value); len(values) > 0 {
			entry[fm.Attribute] = values
		}
	}

	if includeObjectClass && len(model.ObjectClass) > 0 {
		entry[model.ObjectClassAttribute] = slices.Clone(model.ObjectClass)
	}

	return entry, nil
}

// ToChanges converts record into replace changes in mapping declaration order.
func (m *Mapper) ToChanges(record Record, modelName string) ([]ldapclient.Change, error) {
	model, err := m.Model(modelName)
	if err != nil {
		return nil, err
	}

	if err := checkFields(record, model, modelName); err != nil {
		return nil, err
	}

	var changes []ldapclient.Change
	for _, fm := range model.Mapping {
		value, ok := record[fm.Field]
		if !ok {
			continue
		}
		if values := renderValues(value); len(values) > 0 {
			changes = append(changes, ldapclient.Change{
				Operation: ldapclient.ChangeReplace,
				Attribute: fm.Attribute,
				Values:    values,
			})
		}
	}

	return changes, nil
}

// attributeValues returns the non-empty values of attr in entry, converting
// binary identifiers to their string forms.
func (m *Mapper) attributeValues(entry *ldap.Entry, attr string) ([]string, error) {
	var found *ldap.EntryAttribute
	for _, a := range entry.Attributes {
		if strings.EqualFold(a.Name, attr) {
			found = a
			break
		}
	}
	if found == nil {
		return nil, nil
	}

	var decode func([]byte) (string, error)
	switch {
	case strings.EqualFold(attr, "objectGUID"):
		decode = m.guid.Decode
	case strings.EqualFold(attr, "objectSid"):
		decode = m.sid.Decode
	}

	values := make([]string, 0, len(found.Values))
	for i, v := range found.Values {
		if decode != nil && i < len(found.ByteValues) && len(found.ByteValues[i]) > 0 {
			decoded, err := decode(found.ByteValues[i])
			if err != nil {
				return nil, fmt.Errorf("attribute %s: %w", attr, err)
			}
			v = decoded
		}
		if v != "" {
			values = append(values, v)
		}
	}

	return values, nil
}

// checkFields rejects payload keys that have no mapping. Keys are checked in
// sorted order so the reported field is deterministic.
func checkFields(record Record, model *ModelMapping, modelName string) error {
	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !model.Mapping.Has(key) {
			return &UnknownFieldError{Model: modelName, Field: key}
		}
	}
	return nil
}

// renderValues renders an outgoing value. Falsy values (nil, "", false,
// numeric zero, empty slices) render to nothing.
func renderValues(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case []string:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := renderScalar(item); ok {
				out = append(out, s)
			}
		}
		return out
	}

	if s, ok := renderScalar(value); ok {
		return []string{s}
	}
	return nil
}

// renderScalar renders a single value, reporting false for falsy or
// non-scalar input.
func renderScalar(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, v != ""
	case []byte:
		return string(v), len(v) > 0
	case bool:
		if !v {
			return "", false
		}
		return "TRUE", true
	case fmt.Stringer:
		s := v.String()
		return s, s != ""
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if rv.IsZero() {
			return "", false
		}
		return fmt.Sprint(value), true
	case reflect.String:
		s := rv.String()
		return s, s != ""
	default:
		return "", false
	}
}
