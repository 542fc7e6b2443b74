package connector

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-ldap/ldap/v3"
	"gopkg.in/yaml.v3"

	ldapclient "github.com/isometry/terraform-provider-ldapmodel/internal/ldap"
)

// Settings is the connector configuration: the directory endpoint, bind
// identity, transport security and the per-model mapping table.
type Settings struct {
	URL              string                   `yaml:"url"`
	BindDN           string                   `yaml:"bind_dn"`
	BindPassword     string                   `yaml:"bind_password"`
	Timeout          time.Duration            `yaml:"timeout" default:"30s"`
	StartTLS         bool                     `yaml:"start_tls"`
	TLS              TLSSettings              `yaml:"tls"`
	Kerberos         KerberosSettings         `yaml:"kerberos"`
	SearchBase       string                   `yaml:"search_base"`
	SearchBaseFilter string                   `yaml:"search_base_filter" default:"(objectClass=*)"`
	SearchBufferSize int                      `yaml:"search_buffer_size" default:"64"`
	Models           map[string]*ModelMapping `yaml:"models"`
}

// TLSSettings holds transport security options.
type TLSSettings struct {
	CAFile                  string `yaml:"ca_file"`
	SkipServerIdentityCheck bool   `yaml:"skip_server_identity_check"`
	InsecureSkipVerify      bool   `yaml:"insecure_skip_verify"`
}

// KerberosSettings enables a GSSAPI bind when Realm is set.
type KerberosSettings struct {
	Realm  string `yaml:"realm"`
	Keytab string `yaml:"keytab"`
	Config string `yaml:"config"`
	CCache string `yaml:"ccache"`
	SPN    string `yaml:"spn"`
}

// ModelMapping describes how one logical model is stored in the directory.
type ModelMapping struct {
	Mapping              FieldMap   `yaml:"mapping"`
	ObjectClass          StringList `yaml:"objectclass"`
	SearchBase           string     `yaml:"search_base"`
	BaseFilter           string     `yaml:"base_filter"`
	IDField              string     `yaml:"id_field" default:"id"`
	IDAttribute          string     `yaml:"id_attribute"`
	ObjectClassAttribute string     `yaml:"object_class_attribute" default:"objectclass"`
}

// FieldMapping pairs a logical field with its directory attribute.
type FieldMapping struct {
	Field     string
	Attribute string
}

// FieldMap is the ordered field-to-attribute table of a model. Declaration
// order is preserved from the YAML document.
type FieldMap []FieldMapping

// UnmarshalYAML decodes a YAML mapping node, keeping key order.
func (m *FieldMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: mapping must be a map of field to attribute", node.Line)
	}

	out := make(FieldMap, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: attribute for field %q must be a string", value.Line, key.Value)
		}
		out = append(out, FieldMapping{Field: key.Value, Attribute: value.Value})
	}

	*m = out
	return nil
}

// Attribute returns the directory attribute mapped to field.
func (m FieldMap) Attribute(field string) (string, bool) {
	for _, fm := range m {
		if fm.Field == field {
			return fm.Attribute, true
		}
	}
	return "", false
}

// Field returns the logical field mapped to attr. Attribute names compare
// case-insensitively.
func (m FieldMap) Field(attr string) (string, bool) {
	for _, fm := range m {
		if strings.EqualFold(fm.Attribute, attr) {
			return fm.Field, true
		}
	}
	return "", false
}

// Has reports whether field is mapped.
func (m FieldMap) Has(field string) bool {
	_, ok := m.Attribute(field)
	return ok
}

// Attributes returns the mapped attributes in declaration order.
func (m FieldMap) Attributes() []string {
	attrs := make([]string, len(m))
	for i, fm := range m {
		attrs[i] = fm.Attribute
	}
	return attrs
}

func (m FieldMap) validate() error {
	fields := make(map[string]bool, len(m))
	attrs := make(map[string]bool, len(m))

	for _, fm := range m {
		if fm.Field == "" || fm.Attribute == "" {
			return fmt.Errorf("mapping entries need both a field and an attribute (got %q: %q)", fm.Field, fm.Attribute)
		}

		if fields[fm.Field] {
			return fmt.Errorf("field %q is mapped more than once", fm.Field)
		}
		fields[fm.Field] = true

		attr := strings.ToLower(fm.Attribute)
		if attrs[attr] {
			return fmt.Errorf("attribute %q is mapped more than once", fm.Attribute)
		}
		attrs[attr] = true
	}

	return nil
}

// StringList accepts either a single scalar or a sequence.
type StringList []string

func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			*l = nil
			return nil
		}
		*l = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var values []string
		if err := node.Decode(&values); err != nil {
			return err
		}
		*l = values
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}

// NewSettings returns settings populated with defaults.
func NewSettings() (*Settings, error) {
	s := &Settings{}
	if err := defaults.Set(s); err != nil {
		return nil, fmt.Errorf("failed to set default values: %w", err)
	}
	return s, nil
}

// LoadSettings reads settings from a YAML file.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 - settings path is trusted (from operator)
	if err != nil {
		return nil, &ConfigurationError{Message: "failed to read settings file", Cause: err}
	}

	return ParseSettings(data)
}

// ParseSettings decodes YAML settings and applies defaults. The result is
// not validated; call Validate once every override has been applied.
func ParseSettings(data []byte) (*Settings, error) {
	s, err := NewSettings()
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, &ConfigurationError{Message: "failed to parse settings", Cause: err}
	}

	if err := s.applyModelDefaults(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Settings) applyModelDefaults() error {
	for name, model := range s.Models {
		if model == nil {
			return &ConfigurationError{Model: name, Message: "model definition is empty"}
		}
		if err := defaults.Set(model); err != nil {
			return &ConfigurationError{Model: name, Message: "failed to set default values", Cause: err}
		}
	}
	return nil
}

// normalize fills values that derive from other settings.
func (s *Settings) normalize() {
	for _, model := range s.Models {
		if model.SearchBase == "" {
			model.SearchBase = s.SearchBase
		}

		if model.IDAttribute == "" {
			if attr, ok := model.Mapping.Attribute(model.IDField); ok {
				model.IDAttribute = attr
			} else {
				model.IDAttribute = "entryUUID"
			}
		}
	}
}

// ModelNames returns the configured model names in sorted order.
func (s *Settings) ModelNames() []string {
	names := make([]string, 0, len(s.Models))
	for name := range s.Models {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Validate checks the settings for consistency.
func (s *Settings) Validate() error {
	if _, err := ldapclient.ParseLDAPURL(s.URL); err != nil {
		return &ConfigurationError{Message: "invalid url", Cause: err}
	}

	if s.Timeout <= 0 {
		return &ConfigurationError{Message: "timeout must be positive"}
	}

	if s.SearchBufferSize < 0 {
		return &ConfigurationError{Message: "search_buffer_size cannot be negative"}
	}

	if _, err := ldap.CompileFilter(s.SearchBaseFilter); err != nil {
		return &ConfigurationError{Message: "invalid search_base_filter", Cause: err}
	}

	if s.SearchBase != "" {
		if _, err := ldap.ParseDN(s.SearchBase); err != nil {
			return &ConfigurationError{Message: "invalid search_base", Cause: err}
		}
	}

	if len(s.Models) == 0 {
		return &ConfigurationError{Message: "no models configured"}
	}

	for _, name := range s.ModelNames() {
		if err := s.Models[name].validate(name); err != nil {
			return err
		}
	}

	return nil
}

func (m *ModelMapping) validate(name string) error {
	if m == nil {
		return &ConfigurationError{Model: name, Message: "model definition is empty"}
	}

	if len(m.Mapping) == 0 {
		return &ConfigurationError{Model: name, Message: "mapping is empty"}
	}

	if err := m.Mapping.validate(); err != nil {
		return &ConfigurationError{Model: name, Message: "invalid mapping", Cause: err}
	}

	if m.SearchBase == "" {
		return &ConfigurationError{Model: name, Message: "search_base is required"}
	}

	if _, err := ldap.ParseDN(m.SearchBase); err != nil {
		return &ConfigurationError{Model: name, Message: "invalid search_base", Cause: err}
	}

	if m.BaseFilter != "" {
		if _, err := ldap.CompileFilter(m.BaseFilter); err != nil {
			return &ConfigurationError{Model: name, Message: "invalid base_filter", Cause: err}
		}
	}

	if m.IDField == "" || m.IDAttribute == "" {
		return &ConfigurationError{Model: name, Message: "id_field and id_attribute are required"}
	}

	if attr, ok := m.Mapping.Attribute(m.IDField); ok && !strings.EqualFold(attr, m.IDAttribute) {
		return &ConfigurationError{
			Model:   name,
			Message: fmt.Sprintf("id field %q maps to %q but id_attribute is %q", m.IDField, attr, m.IDAttribute),
		}
	}

	if m.ObjectClassAttribute == "" && len(m.ObjectClass) > 0 {
		return &ConfigurationError{Model: name, Message: "object_class_attribute is required when objectclass is set"}
	}

	return nil
}

// SessionConfig derives the directory session configuration.
func (s *Settings) SessionConfig() *ldapclient.SessionConfig {
	return &ldapclient.SessionConfig{
		URL:                     s.URL,
		Timeout:                 s.Timeout,
		BindDN:                  s.BindDN,
		BindPassword:            s.BindPassword,
		KerberosRealm:           s.Kerberos.Realm,
		KerberosKeytab:          s.Kerberos.Keytab,
		KerberosConfig:          s.Kerberos.Config,
		KerberosCCache:          s.Kerberos.CCache,
		KerberosSPN:             s.Kerberos.SPN,
		StartTLS:                s.StartTLS,
		TLSCAFile:               s.TLS.CAFile,
		SkipServerIdentityCheck: s.TLS.SkipServerIdentityCheck,
		InsecureSkipVerify:      s.TLS.InsecureSkipVerify,
		SearchBufferSize:        s.SearchBufferSize,
	}
}

// clone returns a deep copy so the connector's mapping table cannot be
// changed by the caller after construction.
func (s *Settings) clone() *Settings {
	out := *s
	out.Models = make(map[string]*ModelMapping, len(s.Models))
	for name, model := range s.Models {
		if model == nil {
			out.Models[name] = nil
			continue
		}
		m := *model
		m.Mapping = slices.Clone(model.Mapping)
		m.ObjectClass = slices.Clone(model.ObjectClass)
		out.Models[name] = &m
	}
	return &out
}
