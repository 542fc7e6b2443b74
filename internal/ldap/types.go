package ldap

import (
	"crypto/tls"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// SessionConfig holds configuration for the directory session.
type SessionConfig struct {
	// Connection settings
	URL     string        // ldap:// or ldaps:// endpoint
	Timeout time.Duration // Dial and request timeout

	// Authentication settings
	BindDN         string // Principal for simple bind (DN, UPN, or Kerberos principal)
	BindPassword   string // Credential for simple bind
	KerberosRealm  string // Kerberos realm for GSSAPI authentication
	KerberosKeytab string // Path to Kerberos keytab file
	KerberosConfig string // Path to Kerberos config file (krb5.conf)
	KerberosCCache string // Path to Kerberos credential cache
	KerberosSPN    string // Service principal override

	// TLS settings
	TLSConfig               *tls.Config // Custom TLS configuration, built from the fields below when nil
	StartTLS                bool        // Upgrade ldap:// connections with StartTLS
	TLSCAFile               string      // Path to a PEM bundle of trusted CA certificates
	SkipServerIdentityCheck bool        // Verify the chain but not the server hostname
	InsecureSkipVerify      bool        // Skip certificate verification entirely

	// Search settings
	SearchBufferSize int // Event buffer between the wire and the consumer
}

// DefaultConfig returns a secure default configuration.
func DefaultConfig() *SessionConfig {
	return &SessionConfig{
		Timeout:          30 * time.Second,
		SearchBufferSize: 64,
	}
}

// ServerInfo contains information about the directory endpoint.
type ServerInfo struct {
	Host   string
	Port   int
	UseTLS bool
}

// SearchRequest encapsulates LDAP search parameters.
type SearchRequest struct {
	BaseDN       string
	Scope        SearchScope
	Filter       string
	Attributes   []string
	SizeLimit    int
	TimeLimit    time.Duration
	DerefAliases DerefAliases
}

// SearchEventType identifies what a search event carries.
type SearchEventType int

const (
	SearchEventEntry SearchEventType = iota
	SearchEventReferral
	SearchEventError
	SearchEventDone
)

func (t SearchEventType) String() string {
	switch t {
	case SearchEventEntry:
		return "entry"
	case SearchEventReferral:
		return "referral"
	case SearchEventError:
		return "error"
	case SearchEventDone:
		return "done"
	default:
		return "unknown"
	}
}

// SearchEvent is one element of a search result stream. Error and Done are
// terminal: exactly one of them is delivered, after which the stream closes.
type SearchEvent struct {
	Type     SearchEventType
	Entry    *ldap.Entry
	Referral string
	Err      error
}

// Terminal reports whether the event ends the stream.
func (e SearchEvent) Terminal() bool {
	return e.Type == SearchEventError || e.Type == SearchEventDone
}

// AddRequest encapsulates LDAP add parameters.
type AddRequest struct {
	DN         string
	Attributes map[string][]string
}

// ChangeOperation is the kind of a single modification.
type ChangeOperation int

const (
	ChangeReplace ChangeOperation = iota
	ChangeAdd
	ChangeDelete
)

func (o ChangeOperation) String() string {
	switch o {
	case ChangeReplace:
		return "replace"
	case ChangeAdd:
		return "add"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Change is a single attribute modification against an existing entry.
type Change struct {
	Operation ChangeOperation
	Attribute string
	Values    []string
}

// ModifyRequest encapsulates LDAP modify parameters. Changes are applied in order.
type ModifyRequest struct {
	DN      string
	Changes []Change
}

// SearchScope defines LDAP search scope.
type SearchScope int

const (
	ScopeBaseObject SearchScope = iota
	ScopeSingleLevel
	ScopeWholeSubtree
)

func (s SearchScope) String() string {
	switch s {
	case ScopeBaseObject:
		return "base"
	case ScopeSingleLevel:
		return "one"
	case ScopeWholeSubtree:
		return "sub"
	default:
		return "unknown"
	}
}

// DerefAliases defines alias dereferencing behavior.
type DerefAliases int

const (
	NeverDerefAliases DerefAliases = iota
	DerefInSearching
	DerefFindingBaseObj
	DerefAlways
)

// AuthMethod defines authentication method types.
type AuthMethod int

const (
	AuthMethodSimpleBind AuthMethod = iota // Username/password authentication
	AuthMethodKerberos                     // GSSAPI/Kerberos authentication
)

// String returns string representation of authentication method.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodSimpleBind:
		return "simple"
	case AuthMethodKerberos:
		return "kerberos"
	default:
		return "unknown"
	}
}

// GetAuthMethod determines the authentication method from the configuration.
func (c *SessionConfig) GetAuthMethod() AuthMethod {
	if c.KerberosRealm != "" {
		return AuthMethodKerberos
	}
	return AuthMethodSimpleBind
}

// ConnectionError represents connection-related errors.
type ConnectionError struct {
	message string
	cause   error
}

func (e *ConnectionError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *ConnectionError) Unwrap() error {
	return e.cause
}

// NewConnectionError creates a new connection error.
func NewConnectionError(message string, cause error) *ConnectionError {
	return &ConnectionError{
		message: message,
		cause:   cause,
	}
}
