package connector

import (
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ldapclient "github.com/isometry/terraform-provider-ldapmodel/internal/ldap"
)

// adMapper maps an account model keyed by objectGUID.
func adMapper() *Mapper {
	return NewMapper(map[string]*ModelMapping{
		"account": {
			Mapping: FieldMap{
				{Field: "id", Attribute: "objectGUID"},
				{Field: "sid", Attribute: "objectSid"},
				{Field: "name", Attribute: "sAMAccountName"},
				{Field: "groups", Attribute: "memberOf"},
			},
			ObjectClass:          StringList{"top", "user"},
			SearchBase:           "dc=example,dc=com",
			IDField:              "id",
			IDAttribute:          "objectGUID",
			ObjectClassAttribute: "objectClass",
		},
	})
}

func TestMapper_Model(t *testing.T) {
	m := adMapper()

	model, err := m.Model("account")
	require.NoError(t, err)
	assert.Equal(t, "objectGUID", model.IDAttribute)

	_, err = m.Model("missing")
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "missing", cfgErr.Model)
}

func TestMapper_ToModel(t *testing.T) {
	m := adMapper()

	guid := []byte{0xe0, 0x04, 0x25, 0x3f, 0x89, 0x4f, 0xd3, 0x11, 0x9a, 0x0c, 0x03, 0x05, 0xe8, 0x2c, 0x33, 0x01}
	sid := []byte{
		0x01, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
		0x20, 0x00, 0x00, 0x00,
		0x20, 0x02, 0x00, 0x00,
	}

	entry := ldap.NewEntry("cn=alice,dc=example,dc=com", map[string][]string{
		"objectGUID":     {string(guid)},
		"objectSid":      {string(sid)},
		"samaccountname": {"alice"},
		"memberOf":       {"cn=a,dc=example,dc=com", "cn=b,dc=example,dc=com"},
		"description":    {"not mapped"},
	})

	record, err := m.ToModel(entry, "account")
	require.NoError(t, err)
	assert.Equal(t, Record{
		"id":     "3f2504e0-4f89-11d3-9a0c-0305e82c3301",
		"sid":    "S-1-5-32-544",
		"name":   "alice",
		"groups": []string{"cn=a,dc=example,dc=com", "cn=b,dc=example,dc=com"},
	}, record)
}

func TestMapper_ToModelOmitsAbsent(t *testing.T) {
	m := adMapper()

	entry := ldap.NewEntry("cn=bob,dc=example,dc=com", map[string][]string{
		"sAMAccountName": {"bob"},
		"memberOf":       {},
	})

	record, err := m.ToModel(entry, "account")
	require.NoError(t, err)
	assert.Equal(t, Record{"name": "bob"}, record)

	record, err = m.ToModel(nil, "account")
	require.NoError(t, err)
	assert.Empty(t, record)
}

func TestMapper_ToModelBadGUID(t *testing.T) {
	m := adMapper()

	entry := ldap.NewEntry("cn=bob,dc=example,dc=com", map[string][]string{
		"objectGUID": {"short"},
	})

	_, err := m.ToModel(entry, "account")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMapper_ToDirectoryEntry(t *testing.T) {
	m := adMapper()

	t.Run("create includes object classes", func(t *testing.T) {
		entry, err := m.ToDirectoryEntry(Record{
			"name":   "alice",
			"groups": []any{"cn=a,dc=example,dc=com", "", nil},
		}, "account", true)
		require.NoError(t, err)
		assert.Equal(t, DirectoryEntry{
			"sAMAccountName": {"alice"},
			"memberOf":       {"cn=a,dc=example,dc=com"},
			"objectClass":    {"top", "user"},
		}, entry)
	})

	t.Run("falsy values are dropped", func(t *testing.T) {
		entry, err := m.ToDirectoryEntry(Record{
			"name":   "",
			"groups": []string{},
			"sid":    nil,
		}, "account", false)
		require.NoError(t, err)
		assert.Empty(t, entry)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := m.ToDirectoryEntry(Record{"name": "alice", "zeta": 1, "alpha": 2}, "account", false)
		var fieldErr *UnknownFieldError
		require.ErrorAs(t, err, &fieldErr)
		assert.Equal(t, "alpha", fieldErr.Field)
	})

	t.Run("object classes are copied", func(t *testing.T) {
		entry, err := m.ToDirectoryEntry(Record{"name": "alice"}, "account", true)
		require.NoError(t, err)
		entry["objectClass"][0] = "changed"

		model, err := m.Model("account")
		require.NoError(t, err)
		assert.Equal(t, "top", model.ObjectClass[0])
	})
}

func TestMapper_ToChanges(t *testing.T) {
	m := adMapper()

	changes, err := m.ToChanges(Record{
		"groups": []string{"cn=a,dc=example,dc=com"},
		"name":   "alice",
		"sid":    "",
	}, "account")
	require.NoError(t, err)
	assert.Equal(t, []ldapclient.Change{
		{Operation: ldapclient.ChangeReplace, Attribute: "sAMAccountName", Values: []string{"alice"}},
		{Operation: ldapclient.ChangeReplace, Attribute: "memberOf", Values: []string{"cn=a,dc=example,dc=com"}},
	}, changes)

	changes, err = m.ToChanges(Record{}, "account")
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestRenderValues(t *testing.T) {
	type label string

	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{"nil", nil, nil},
		{"empty string", "", nil},
		{"string", "x", []string{"x"}},
		{"false", false, nil},
		{"true", true, []string{"TRUE"}},
		{"zero", 0, nil},
		{"int", 42, []string{"42"}},
		{"float", 1.5, []string{"1.5"}},
		{"bytes", []byte("raw"), []string{"raw"}},
		{"named string", label("x"), []string{"x"}},
		{"string slice", []string{"a", "", "b"}, []string{"a", "b"}},
		{"any slice", []any{"a", 0, 7, false}, []string{"a", "7"}},
		{"map", map[string]string{"a": "b"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderValues(tt.value)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirectoryEntry(t *testing.T) {
	entry := DirectoryEntry{"CN": {"alice"}, "mail": {"a@example.com"}}

	assert.Equal(t, []string{"alice"}, entry.Get("cn"))
	assert.Equal(t, []string{"a@example.com"}, entry.Get("mail"))
	assert.Nil(t, entry.Get("sn"))

	entry.Delete("cn")
	assert.Nil(t, entry.Get("CN"))
	assert.Len(t, entry, 1)
}

func TestMapper_RoundTrip(t *testing.T) {
	person := newTestConnector(t, &MockDirectory{}).Mapper()
	account := adMapper()

	tests := []struct {
		name   string
		mapper *Mapper
		model  string
		record Record
		want   Record
	}{
		{
			name:   "single values",
			mapper: person,
			model:  "person",
			record: Record{"name": "Alice", "email": "a@example.com"},
			want:   Record{"name": "Alice", "email": "a@example.com"},
		},
		{
			name:   "multi-valued field",
			mapper: account,
			model:  "account",
			record: Record{"name": "alice", "groups": []string{"cn=a,dc=example,dc=com", "cn=b,dc=example,dc=com"}},
			want:   Record{"name": "alice", "groups": []string{"cn=a,dc=example,dc=com", "cn=b,dc=example,dc=com"}},
		},
		{
			name:   "empty field is dropped",
			mapper: account,
			model:  "account",
			record: Record{"name": "bob", "groups": []string{}, "sid": ""},
			want:   Record{"name": "bob"},
		},
		{
			name:   "single-element list reads back as a string",
			mapper: person,
			model:  "person",
			record: Record{"name": []string{"Carol"}},
			want:   Record{"name": "Carol"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs, err := tt.mapper.ToDirectoryEntry(tt.record, tt.model, false)
			require.NoError(t, err)

			got, err := tt.mapper.ToModel(ldap.NewEntry("cn=x,dc=example,dc=com", attrs), tt.model)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
