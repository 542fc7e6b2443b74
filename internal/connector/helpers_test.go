package connector

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	ldapclient "github.com/isometry/terraform-provider-ldapmodel/internal/ldap"
)

const testSettingsYAML = `
url: ldap://ldap.example.com
bind_dn: cn=admin,dc=example,dc=com
bind_password: secret
search_base: dc=example,dc=com
models:
  person:
    mapping:
      id: entryUUID
      name: cn
      email: mail
    objectclass: [inetOrgPerson]
    search_base: ou=people,dc=example,dc=com
  group:
    mapping:
      name: cn
      members: member
    objectclass: groupOfNames
    base_filter: (objectClass=groupOfNames)
`

func testSettings(t *testing.T) *Settings {
	t.Helper()
	s, err := ParseSettings([]byte(testSettingsYAML))
	require.NoError(t, err)
	return s
}

func newTestConnector(t *testing.T, dir Directory) *Connector {
	t.Helper()
	c, err := NewConnector(testSettings(t), dir)
	require.NoError(t, err)
	return c
}

// MockDirectory implements Directory for call-shape assertions.
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) Bind(ctx context.Context, principal, credential string) error {
	args := m.Called(ctx, principal, credential)
	return args.Error(0)
}

func (m *MockDirectory) Unbind(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDirectory) Search(ctx context.Context, req *ldapclient.SearchRequest) <-chan ldapclient.SearchEvent {
	args := m.Called(ctx, req)
	var events []ldapclient.SearchEvent
	if e := args.Get(0); e != nil {
		events = e.([]ldapclient.SearchEvent)
	}
	return eventStream(events...)
}

func (m *MockDirectory) Add(ctx context.Context, req *ldapclient.AddRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockDirectory) Modify(ctx context.Context, req *ldapclient.ModifyRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockDirectory) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func eventStream(events ...ldapclient.SearchEvent) <-chan ldapclient.SearchEvent {
	ch := make(chan ldapclient.SearchEvent, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	return ch
}

func entryEvent(dn string, attrs map[string][]string) ldapclient.SearchEvent {
	return ldapclient.SearchEvent{Type: ldapclient.SearchEventEntry, Entry: ldap.NewEntry(dn, attrs)}
}

func referralEvent(url string) ldapclient.SearchEvent {
	return ldapclient.SearchEvent{Type: ldapclient.SearchEventReferral, Referral: url}
}

func errorEvent(err error) ldapclient.SearchEvent {
	return ldapclient.SearchEvent{Type: ldapclient.SearchEventError, Err: err}
}

func doneEvent() ldapclient.SearchEvent {
	return ldapclient.SearchEvent{Type: ldapclient.SearchEventDone}
}

// fakeDirectory is an in-memory directory supporting equality and presence
// filters combined with &, enough for end-to-end connector tests.
type fakeDirectory struct {
	mu      sync.Mutex
	entries map[string]map[string][]string
	order   []string
	bound   string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{entries: make(map[string]map[string][]string)}
}

func (f *fakeDirectory) Bind(_ context.Context, principal, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bound = principal
	return nil
}

func (f *fakeDirectory) Unbind(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bound = ""
	return nil
}

func (f *fakeDirectory) Ping(context.Context) error { return nil }

func (f *fakeDirectory) Add(_ context.Context, req *ldapclient.AddRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.ToLower(req.DN)
	if _, exists := f.entries[key]; exists {
		return ldap.NewError(ldap.LDAPResultEntryAlreadyExists, fmt.Errorf("entry %s already exists", req.DN))
	}

	attrs := make(map[string][]string, len(req.Attributes)+1)
	for k, v := range req.Attributes {
		attrs[k] = append([]string(nil), v...)
	}
	attrs["entryUUID"] = []string{uuid.NewString()}

	f.entries[key] = attrs
	f.order = append(f.order, req.DN)
	return nil
}

func (f *fakeDirectory) Modify(_ context.Context, req *ldapclient.ModifyRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	attrs, ok := f.entries[strings.ToLower(req.DN)]
	if !ok {
		return ldap.NewError(ldap.LDAPResultNoSuchObject, fmt.Errorf("no such object %s", req.DN))
	}

	for _, change := range req.Changes {
		name := lookupName(attrs, change.Attribute)
		switch change.Operation {
		case ldapclient.ChangeReplace:
			attrs[name] = append([]string(nil), change.Values...)
		case ldapclient.ChangeAdd:
			attrs[name] = append(attrs[name], change.Values...)
		case ldapclient.ChangeDelete:
			delete(attrs, name)
		}
	}
	return nil
}

func (f *fakeDirectory) Search(_ context.Context, req *ldapclient.SearchRequest) <-chan ldapclient.SearchEvent {
	f.mu.Lock()
	defer f.mu.Unlock()

	clauses := parseTestFilter(req.Filter)
	base := strings.ToLower(req.BaseDN)

	var events []ldapclient.SearchEvent
	for _, dn := range f.order {
		key := strings.ToLower(dn)
		switch req.Scope {
		case ldapclient.ScopeBaseObject:
			if key != base {
				continue
			}
		default:
			if key != base && !strings.HasSuffix(key, ","+base) {
				continue
			}
		}

		attrs := f.entries[key]
		if !matchesTestFilter(attrs, clauses) {
			continue
		}

		projected := make(map[string][]string)
		for _, want := range req.Attributes {
			name := lookupName(attrs, want)
			if values, ok := attrs[name]; ok {
				projected[name] = values
			}
		}
		events = append(events, entryEvent(dn, projected))
	}

	return eventStream(append(events, doneEvent())...)
}

func lookupName(attrs map[string][]string, attr string) string {
	for name := range attrs {
		if strings.EqualFold(name, attr) {
			return name
		}
	}
	return attr
}

var testClauseRe = regexp.MustCompile(`\(([^&|!=()]+)=([^()]*)\)`)

type testClause struct{ attr, value string }

func parseTestFilter(filter string) []testClause {
	var clauses []testClause
	for _, m := range testClauseRe.FindAllStringSubmatch(filter, -1) {
		clauses = append(clauses, testClause{attr: m[1], value: m[2]})
	}
	return clauses
}

func matchesTestFilter(attrs map[string][]string, clauses []testClause) bool {
	for _, cl := range clauses {
		if cl.value == "*" {
			if strings.EqualFold(cl.attr, "objectClass") {
				continue
			}
			if _, ok := attrs[lookupName(attrs, cl.attr)]; !ok {
				return false
			}
			continue
		}

		found := false
		for _, v := range attrs[lookupName(attrs, cl.attr)] {
			if strings.EqualFold(v, cl.value) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
