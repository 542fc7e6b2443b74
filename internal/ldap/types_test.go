package ldap

import (
	"errors"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
)

func TestSessionConfig_GetAuthMethod(t *testing.T) {
	assert.Equal(t, AuthMethodSimpleBind, (&SessionConfig{BindDN: "cn=admin"}).GetAuthMethod())
	assert.Equal(t, AuthMethodKerberos, (&SessionConfig{KerberosRealm: "EXAMPLE.COM"}).GetAuthMethod())
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "simple", AuthMethodSimpleBind.String())
	assert.Equal(t, "kerberos", AuthMethodKerberos.String())
	assert.Equal(t, "unknown", AuthMethod(99).String())

	assert.Equal(t, "base", ScopeBaseObject.String())
	assert.Equal(t, "one", ScopeSingleLevel.String())
	assert.Equal(t, "sub", ScopeWholeSubtree.String())

	assert.Equal(t, "replace", ChangeReplace.String())
	assert.Equal(t, "add", ChangeAdd.String())
	assert.Equal(t, "delete", ChangeDelete.String())

	assert.Equal(t, "entry", SearchEventEntry.String())
	assert.Equal(t, "done", SearchEventDone.String())
}

func TestSearchScope_MatchesLibrary(t *testing.T) {
	assert.Equal(t, ldap.ScopeBaseObject, int(ScopeBaseObject))
	assert.Equal(t, ldap.ScopeSingleLevel, int(ScopeSingleLevel))
	assert.Equal(t, ldap.ScopeWholeSubtree, int(ScopeWholeSubtree))
	assert.Equal(t, ldap.NeverDerefAliases, int(NeverDerefAliases))
	assert.Equal(t, ldap.DerefAlways, int(DerefAlways))
}

func TestSearchEvent_Terminal(t *testing.T) {
	assert.False(t, SearchEvent{Type: SearchEventEntry}.Terminal())
	assert.False(t, SearchEvent{Type: SearchEventReferral}.Terminal())
	assert.True(t, SearchEvent{Type: SearchEventError}.Terminal())
	assert.True(t, SearchEvent{Type: SearchEventDone}.Terminal())
}

func TestConnectionError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewConnectionError("failed to connect", cause)

	assert.Equal(t, "failed to connect: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "no cause", NewConnectionError("no cause", nil).Error())
}
