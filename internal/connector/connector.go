package connector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-ldapmodel/internal/ldap"
)

// Directory is the session the connector issues requests against.
// *ldap.Session satisfies it.
type Directory interface {
	Bind(ctx context.Context, principal, credential string) error
	Unbind(ctx context.Context) error
	Search(ctx context.Context, req *ldapclient.SearchRequest) <-chan ldapclient.SearchEvent
	Add(ctx context.Context, req *ldapclient.AddRequest) error
	Modify(ctx context.Context, req *ldapclient.ModifyRequest) error
	Ping(ctx context.Context) error
}

var _ Directory = (*ldapclient.Session)(nil)

// rdnAttribute names the attribute new entries are named by.
const rdnAttribute = "cn"

// Connector executes model CRUD operations against a directory.
type Connector struct {
	settings  *Settings
	directory Directory
	mapper    *Mapper
	filters   *FilterBuilder
}

// NewConnector validates settings and creates a connector. The settings are
// copied; later changes by the caller have no effect.
func NewConnector(settings *Settings, directory Directory) (*Connector, error) {
	if settings == nil {
		return nil, &ConfigurationError{Message: "settings are required"}
	}
	if directory == nil {
		return nil, &ConfigurationError{Message: "directory session is required"}
	}

	s := settings.clone()
	if err := s.applyModelDefaults(); err != nil {
		return nil, err
	}
	s.normalize()

	if err := s.Validate(); err != nil {
		return nil, err
	}

	mapper := NewMapper(s.Models)

	return &Connector{
		settings:  s,
		directory: directory,
		mapper:    mapper,
		filters:   NewFilterBuilder(mapper, s.SearchBaseFilter),
	}, nil
}

// Mapper returns the connector's attribute mapper.
func (c *Connector) Mapper() *Mapper {
	return c.mapper
}

// Models returns the configured model names in sorted order.
func (c *Connector) Models() []string {
	return c.settings.ModelNames()
}

// Connect binds the session with the configured principal.
func (c *Connector) Connect(ctx context.Context) error {
	return ldapclient.LogOperation(ctx, ldapclient.SubsystemConnector, "connect", map[string]any{
		"url":     c.settings.URL,
		"bind_dn": c.settings.BindDN,
	}, func() error {
		return c.directory.Bind(ctx, c.settings.BindDN, c.settings.BindPassword)
	})
}

// Disconnect unbinds the session.
func (c *Connector) Disconnect(ctx context.Context) error {
	return ldapclient.LogOperation(ctx, ldapclient.SubsystemConnector, "disconnect", nil, func() error {
		return c.directory.Unbind(ctx)
	})
}

// Ping checks that the session is usable.
func (c *Connector) Ping(ctx context.Context) error {
	return c.directory.Ping(ctx)
}

// Count returns the number of model entries matching where. Directory
// failures are logged and reported as -1 with a nil error; mapping and
// filter errors are returned before any request is issued.
func (c *Connector) Count(ctx context.Context, modelName string, where Predicate) (int, error) {
	model, err := c.mapper.Model(modelName)
	if err != nil {
		return 0, err
	}

	filter, err := c.filters.Build(where, modelName)
	if err != nil {
		return 0, err
	}

	req := &ldapclient.SearchRequest{
		BaseDN:     model.SearchBase,
		Scope:      ldapclient.ScopeWholeSubtree,
		Filter:     filter,
		Attributes: []string{model.IDAttribute},
	}

	collector := NewCollector(c.mapper, modelName, CollectCount)
	c.search(ctx, req, collector)

	count, err := collector.Count()
	if err != nil {
		var dirErr *DirectoryError
		if errors.As(err, &dirErr) {
			ldapclient.LogLDAPError(ctx, ldapclient.SubsystemConnector, "count", err, map[string]any{
				"model":  modelName,
				"filter": filter,
			})
			return -1, nil
		}
		return 0, err
	}

	tflog.SubsystemDebug(ctx, ldapclient.SubsystemConnector, "Counted entries", map[string]any{
		"model":  modelName,
		"filter": filter,
		"count":  count,
	})
	return count, nil
}

// All returns the model records matching filter, in the order the directory
// delivered them. Only mapped attributes are requested.
func (c *Connector) All(ctx context.Context, modelName string, filter *Filter) ([]Record, error) {
	model, err := c.mapper.Model(modelName)
	if err != nil {
		return nil, err
	}

	var where Predicate
	if filter != nil {
		where = filter.Where
	}

	expr, err := c.filters.Build(where, modelName)
	if err != nil {
		return nil, err
	}

	req := &ldapclient.SearchRequest{
		BaseDN:     model.SearchBase,
		Scope:      ldapclient.ScopeWholeSubtree,
		Filter:     expr,
		Attributes: model.Mapping.Attributes(),
	}

	collector := NewCollector(c.mapper, modelName, CollectRecords)
	c.search(ctx, req, collector)

	records, err := collector.Records()
	if err != nil {
		return nil, err
	}

	tflog.SubsystemDebug(ctx, ldapclient.SubsystemConnector, "Retrieved records", map[string]any{
		"model":   modelName,
		"filter":  expr,
		"records": len(records),
	})
	return records, nil
}

// Create adds a new entry named cn=<cn>,<search base> and returns the
// identifier the directory assigned to it. The id field is never written.
func (c *Connector) Create(ctx context.Context, modelName string, record Record) (string, error) {
	model, err := c.mapper.Model(modelName)
	if err != nil {
		return "", err
	}

	entry, err := c.mapper.ToDirectoryEntry(withoutField(record, model.IDField), modelName, true)
	if err != nil {
		return "", err
	}
	entry.Delete(model.IDAttribute)

	cn := entry.Get(rdnAttribute)
	if len(cn) == 0 {
		field, _ := model.Mapping.Field(rdnAttribute)
		return "", &ValidationError{Model: modelName, Field: field, Message: "a non-empty cn is required to create an entry"}
	}

	dn, err := ldapclient.BuildDN(rdnAttribute, cn[0], model.SearchBase)
	if err != nil {
		return "", &ValidationError{Model: modelName, Message: err.Error()}
	}

	var id string
	err = ldapclient.LogOperation(ctx, ldapclient.SubsystemConnector, "create", map[string]any{
		"model": modelName,
		"dn":    dn,
	}, func() error {
		if err := c.directory.Add(ctx, &ldapclient.AddRequest{DN: dn, Attributes: entry}); err != nil {
			return newDirectoryError("add", modelName, dn, err)
		}

		newID, err := c.readID(ctx, model, modelName, dn)
		if err != nil {
			return err
		}
		id = newID
		return nil
	})
	if err != nil {
		return "", err
	}

	return id, nil
}

// search runs req into collector. The search context is canceled on return
// so a collector that completes early releases the session's result pump.
func (c *Connector) search(ctx context.Context, req *ldapclient.SearchRequest, collector *Collector) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	_ = collector.Consume(ctx, c.directory.Search(ctx, req))
}

// readID reads the identifier attribute of the entry at dn.
func (c *Connector) readID(ctx context.Context, model *ModelMapping, modelName, dn string) (string, error) {
	req := &ldapclient.SearchRequest{
		BaseDN:     dn,
		Scope:      ldapclient.ScopeBaseObject,
		Filter:     fallbackFilter,
		Attributes: []string{model.IDAttribute},
	}

	collector := NewCollector(c.mapper, modelName, CollectFirst)
	c.search(ctx, req, collector)

	entry, err := collector.First()
	if err != nil {
		return "", err
	}
	if entry == nil {
		return "", notFound("create", modelName, dn, "created entry not found")
	}

	values, err := c.mapper.attributeValues(entry, model.IDAttribute)
	if err != nil {
		return "", &ValidationError{Model: modelName, Field: model.IDField, Message: err.Error()}
	}
	if len(values) == 0 {
		return "", notFound("create", modelName, dn, fmt.Sprintf("created entry has no %s", model.IDAttribute))
	}

	return values[0], nil
}

// UpdateAttributes replaces the mapped attributes present in record on the
// entry identified by id, and returns id unchanged.
func (c *Connector) UpdateAttributes(ctx context.Context, modelName, id string, record Record) (string, error) {
	model, err := c.mapper.Model(modelName)
	if err != nil {
		return "", err
	}

	if err := validateID(model, modelName, id); err != nil {
		return "", err
	}

	changes, err := c.mapper.ToChanges(withoutField(record, model.IDField), modelName)
	if err != nil {
		return "", err
	}

	idFilter, err := c.filters.Equality(modelName, model.IDField, model.IDAttribute, id)
	if err != nil {
		return "", err
	}

	err = ldapclient.LogOperation(ctx, ldapclient.SubsystemConnector, "update", map[string]any{
		"model":   modelName,
		"id":      id,
		"changes": len(changes),
	}, func() error {
		dn, err := c.resolveDN(ctx, model, modelName, idFilter, id)
		if err != nil {
			return err
		}

		if len(changes) == 0 {
			return nil
		}

		if err := c.directory.Modify(ctx, &ldapclient.ModifyRequest{DN: dn, Changes: changes}); err != nil {
			return newDirectoryError("modify", modelName, dn, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return id, nil
}

// resolveDN finds the entry whose id attribute matches idFilter.
func (c *Connector) resolveDN(ctx context.Context, model *ModelMapping, modelName, idFilter, id string) (string, error) {
	req := &ldapclient.SearchRequest{
		BaseDN:     model.SearchBase,
		Scope:      ldapclient.ScopeWholeSubtree,
		Filter:     idFilter,
		Attributes: []string{model.IDAttribute},
	}

	collector := NewCollector(c.mapper, modelName, CollectFirst)
	c.search(ctx, req, collector)

	entry, err := collector.First()
	if err != nil {
		return "", err
	}
	if entry == nil {
		return "", notFound("modify", modelName, "", fmt.Sprintf("no entry with %s=%s", model.IDAttribute, id))
	}

	return entry.DN, nil
}

func validateID(model *ModelMapping, modelName, id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Model: modelName, Field: model.IDField, Message: "id cannot be empty"}
	}

	switch {
	case strings.EqualFold(model.IDAttribute, "entryUUID"):
		if _, err := uuid.Parse(id); err != nil {
			return &ValidationError{Model: modelName, Field: model.IDField, Message: fmt.Sprintf("invalid entryUUID %q", id)}
		}
	case strings.EqualFold(model.IDAttribute, "objectGUID"):
		if !ldapclient.NewGUIDHandler().IsValidGUID(id) {
			return &ValidationError{Model: modelName, Field: model.IDField, Message: fmt.Sprintf("invalid objectGUID %q", id)}
		}
	}

	return nil
}

// withoutField returns record minus field, leaving the caller's map intact.
func withoutField(record Record, field string) Record {
	if _, ok := record[field]; !ok {
		return record
	}

	out := make(Record, len(record)-1)
	for k, v := range record {
		if k != field {
			out[k] = v
		}
	}
	return out
}
