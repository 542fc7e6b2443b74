package ldap

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// ErrNotConnected is returned by operations issued before Connect or after Unbind.
var ErrNotConnected = errors.New("directory session is not connected")

// Session owns one live connection to the directory. All requests are issued
// against the same connection; go-ldap multiplexes them by message ID.
type Session struct {
	config *SessionConfig

	mu     sync.RWMutex
	conn   *ldap.Conn
	server *ServerInfo
}

// NewSession creates a session for the given configuration. No network I/O
// happens until Connect or Bind.
func NewSession(config *SessionConfig) (*Session, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Session{config: config}, nil
}

// Connect dials the configured endpoint. Calling Connect on a connected session is a no-op.
func (s *Session) Connect(ctx context.Context) error {
	return LogOperation(ctx, "ldap", "connect", map[string]any{
		"url":       s.config.URL,
		"start_tls": s.config.StartTLS,
	}, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.conn != nil && !s.conn.IsClosing() {
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		server, err := ParseLDAPURL(s.config.URL)
		if err != nil {
			return err
		}

		tlsConfig, err := buildTLSConfig(s.config, server.Host)
		if err != nil {
			return err
		}

		opts := []ldap.DialOpt{ldap.DialWithDialer(&net.Dialer{Timeout: s.config.Timeout})}
		if server.UseTLS {
			opts = append(opts, ldap.DialWithTLSConfig(tlsConfig))
		}

		conn, err := ldap.DialURL(s.config.URL, opts...)
		if err != nil {
			LogConnectionEvent(ctx, "connection_failed", map[string]any{
				"url":   s.config.URL,
				"error": err.Error(),
			})
			return NewConnectionError(fmt.Sprintf("failed to connect to %s", s.config.URL), err)
		}

		if !server.UseTLS && s.config.StartTLS {
			if err := conn.StartTLS(tlsConfig); err != nil {
				conn.Close()
				return NewConnectionError("StartTLS negotiation failed", err)
			}
		}

		conn.SetTimeout(s.config.Timeout)

		s.conn = conn
		s.server = server

		LogConnectionEvent(ctx, "connection_established", map[string]any{
			"host":    server.Host,
			"port":    server.Port,
			"use_tls": server.UseTLS || s.config.StartTLS,
		})
		return nil
	})
}

// Bind authenticates the session, connecting first when needed. With a
// Kerberos realm configured the principal and credential are used for a
// GSSAPI bind; otherwise a simple bind is performed. An empty credential
// results in an unauthenticated bind.
func (s *Session) Bind(ctx context.Context, principal, credential string) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}

	authMethod := s.config.GetAuthMethod()
	fields := map[string]any{
		"auth_method": authMethod.String(),
		"principal":   principal,
	}

	return LogOperation(ctx, "ldap", "bind", fields, func() error {
		conn, server, err := s.connection()
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		switch authMethod {
		case AuthMethodKerberos:
			err = performKerberosAuth(ctx, conn, s.config, principal, credential, server)
		default:
			if credential == "" {
				err = conn.UnauthenticatedBind(principal)
			} else {
				err = conn.Bind(principal, credential)
			}
		}

		if err != nil {
			LogLDAPError(ctx, "ldap", "bind", err, SanitizeFields(fields))
			LogConnectionEvent(ctx, "authentication_failed", map[string]any{
				"auth_method": authMethod.String(),
			})
			return WrapError("bind", err)
		}

		LogConnectionEvent(ctx, "authentication_success", map[string]any{
			"auth_method": authMethod.String(),
		})
		return nil
	})
}

// BindWithConfig binds with the principal and credential from the session configuration.
func (s *Session) BindWithConfig(ctx context.Context) error {
	return s.Bind(ctx, s.config.BindDN, s.config.BindPassword)
}

// Unbind tears the session down. Unbinding a closed session is a no-op.
func (s *Session) Unbind(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	conn := s.conn
	s.conn = nil
	s.server = nil

	if conn.IsClosing() {
		return nil
	}

	if err := conn.Unbind(); err != nil {
		conn.Close()
		LogLDAPError(ctx, "ldap", "unbind", err, nil)
		return WrapError("unbind", err)
	}

	LogConnectionEvent(ctx, "connection_closed", map[string]any{
		"url": s.config.URL,
	})
	return nil
}

// Search issues an asynchronous search and returns its event stream. The
// stream delivers entries and referrals in arrival order followed by exactly
// one terminal event, then closes. When ctx ends before the receiver has
// drained the stream, the request is abandoned and the stream closes.
func (s *Session) Search(ctx context.Context, req *SearchRequest) <-chan SearchEvent {
	events := make(chan SearchEvent, max(s.config.SearchBufferSize, 1))

	if req == nil {
		events <- SearchEvent{Type: SearchEventError, Err: fmt.Errorf("search request cannot be nil")}
		close(events)
		return events
	}

	conn, _, err := s.connection()
	if err != nil {
		events <- SearchEvent{Type: SearchEventError, Err: err}
		close(events)
		return events
	}

	fields := map[string]any{
		"base_dn":    req.BaseDN,
		"scope":      req.Scope.String(),
		"filter":     req.Filter,
		"attributes": req.Attributes,
	}
	tflog.SubsystemDebug(ctx, "ldap", "Starting search operation", fields)

	ldapReq := toLDAPSearchRequest(req)

	go func() {
		defer close(events)

		start := time.Now()
		entries := 0
		response := conn.SearchAsync(ctx, ldapReq, s.config.SearchBufferSize)

		for response.Next() {
			var event SearchEvent
			if entry := response.Entry(); entry != nil {
				entries++
				event = SearchEvent{Type: SearchEventEntry, Entry: entry}
			} else if referral := response.Referral(); referral != "" {
				event = SearchEvent{Type: SearchEventReferral, Referral: referral}
			} else {
				continue
			}

			if !deliver(ctx, events, event) {
				return
			}
		}

		fields["duration_ms"] = time.Since(start).Milliseconds()
		fields["entries_found"] = entries

		if err := response.Err(); err != nil {
			LogLDAPError(ctx, "ldap", "search", err, fields)
			deliver(ctx, events, SearchEvent{Type: SearchEventError, Err: WrapError("search", err)})
			return
		}

		tflog.SubsystemDebug(ctx, "ldap", "Search operation completed successfully", fields)
		deliver(ctx, events, SearchEvent{Type: SearchEventDone})
	}()

	return events
}

// deliver sends an event unless the consumer has gone away.
func deliver(ctx context.Context, events chan<- SearchEvent, event SearchEvent) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// Add creates a new LDAP entry.
func (s *Session) Add(ctx context.Context, req *AddRequest) error {
	if req == nil {
		return fmt.Errorf("add request cannot be nil")
	}

	return LogOperation(ctx, "ldap", "add", map[string]any{
		"dn":         req.DN,
		"attributes": sortedKeys(req.Attributes),
	}, func() error {
		conn, _, err := s.connection()
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if err := conn.Add(toLDAPAddRequest(req)); err != nil {
			return &LDAPError{
				Operation: "add",
				Category:  GetErrorCategory(err),
				LDAPCode:  resultCode(err),
				Message:   err.Error(),
				DN:        req.DN,
				Cause:     err,
			}
		}
		return nil
	})
}

// Modify applies the request's changes, in order, to an existing entry.
func (s *Session) Modify(ctx context.Context, req *ModifyRequest) error {
	if req == nil {
		return fmt.Errorf("modify request cannot be nil")
	}

	if req.DN == "" {
		return fmt.Errorf("DN cannot be empty")
	}

	return LogOperation(ctx, "ldap", "modify", map[string]any{
		"dn":      req.DN,
		"changes": len(req.Changes),
	}, func() error {
		conn, _, err := s.connection()
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if err := conn.Modify(toLDAPModifyRequest(req)); err != nil {
			ldapErr := NewLDAPError("modify", err)
			ldapErr.DN = req.DN
			return ldapErr
		}
		return nil
	})
}

// Ping tests connectivity with a root DSE read.
func (s *Session) Ping(ctx context.Context) error {
	conn, _, err := s.connection()
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	searchReq := ldap.NewSearchRequest(
		"", // Empty base DN for root DSE
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		1, 5, false, // Size limit 1, time limit 5 seconds
		"(objectClass=*)",
		[]string{"namingContexts"},
		nil,
	)

	if _, err := conn.Search(searchReq); err != nil {
		LogLDAPError(ctx, "ldap", "ping", err, nil)
		return WrapError("ping", err)
	}
	return nil
}

// connection returns the live connection. A dropped connection is reported,
// never re-established.
func (s *Session) connection() (*ldap.Conn, *ServerInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.conn == nil {
		return nil, nil, ErrNotConnected
	}

	if s.conn.IsClosing() {
		return nil, nil, NewConnectionError("directory session closed", ErrNotConnected)
	}

	return s.conn, s.server, nil
}

func toLDAPSearchRequest(req *SearchRequest) *ldap.SearchRequest {
	return ldap.NewSearchRequest(
		req.BaseDN,
		int(req.Scope),
		int(req.DerefAliases),
		req.SizeLimit,
		int(req.TimeLimit.Seconds()),
		false, // TypesOnly
		req.Filter,
		req.Attributes,
		nil, // Controls
	)
}

func toLDAPAddRequest(req *AddRequest) *ldap.AddRequest {
	ldapReq := ldap.NewAddRequest(req.DN, nil)
	for _, attr := range sortedKeys(req.Attributes) {
		ldapReq.Attribute(attr, req.Attributes[attr])
	}
	return ldapReq
}

func toLDAPModifyRequest(req *ModifyRequest) *ldap.ModifyRequest {
	ldapReq := ldap.NewModifyRequest(req.DN, nil)
	for _, change := range req.Changes {
		switch change.Operation {
		case ChangeAdd:
			ldapReq.Add(change.Attribute, change.Values)
		case ChangeDelete:
			ldapReq.Delete(change.Attribute, change.Values)
		default:
			ldapReq.Replace(change.Attribute, change.Values)
		}
	}
	return ldapReq
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// ParseLDAPURL parses an ldap:// or ldaps:// URL into server information.
func ParseLDAPURL(ldapURL string) (*ServerInfo, error) {
	if ldapURL == "" {
		return nil, fmt.Errorf("LDAP URL cannot be empty")
	}

	parsed, err := url.Parse(ldapURL)
	if err != nil {
		return nil, fmt.Errorf("invalid LDAP URL %q: %w", ldapURL, err)
	}

	server := &ServerInfo{Host: parsed.Hostname()}
	if server.Host == "" {
		return nil, fmt.Errorf("no hostname found in URL: %s", ldapURL)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "ldaps":
		server.UseTLS = true
		server.Port = 636
	case "ldap":
		server.Port = 389
	default:
		return nil, fmt.Errorf("unsupported URL scheme %q: expected ldap or ldaps", parsed.Scheme)
	}

	if port := parsed.Port(); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			return nil, fmt.Errorf("invalid port in URL: %s", ldapURL)
		}
		server.Port = p
	}

	return server, nil
}

// buildTLSConfig builds the client TLS configuration. With
// SkipServerIdentityCheck the certificate chain is still verified against the
// trusted roots; only the hostname match is skipped.
func buildTLSConfig(cfg *SessionConfig, serverName string) (*tls.Config, error) {
	if cfg.TLSConfig != nil {
		return cfg.TLSConfig.Clone(), nil
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: serverName,
	}

	if cfg.TLSCAFile != "" {
		pem, err := os.ReadFile(filepath.Clean(cfg.TLSCAFile)) // #nosec G304 - CA path comes from operator configuration
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate file: %w", err)
		}

		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}

		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in CA file %s", cfg.TLSCAFile)
		}
		tlsConfig.RootCAs = pool
	}

	switch {
	case cfg.InsecureSkipVerify:
		tlsConfig.InsecureSkipVerify = true // #nosec G402 - explicit operator opt-in
	case cfg.SkipServerIdentityCheck:
		tlsConfig.InsecureSkipVerify = true // #nosec G402 - chain verified in VerifyConnection
		tlsConfig.VerifyConnection = verifyChainOnly(tlsConfig.RootCAs)
	}

	return tlsConfig, nil
}

// verifyChainOnly validates the peer certificate chain without checking the hostname.
func verifyChainOnly(roots *x509.CertPool) func(tls.ConnectionState) error {
	return func(cs tls.ConnectionState) error {
		if len(cs.PeerCertificates) == 0 {
			return errors.New("server presented no certificates")
		}

		opts := x509.VerifyOptions{
			Roots:         roots,
			Intermediates: x509.NewCertPool(),
		}
		for _, cert := range cs.PeerCertificates[1:] {
			opts.Intermediates.AddCert(cert)
		}

		_, err := cs.PeerCertificates[0].Verify(opts)
		return err
	}
}

// validateConfig validates the session configuration.
func validateConfig(config *SessionConfig) error {
	if config.URL == "" {
		return errors.New("URL is required")
	}

	if _, err := ParseLDAPURL(config.URL); err != nil {
		return err
	}

	if config.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}

	if config.SearchBufferSize < 0 {
		return errors.New("SearchBufferSize cannot be negative")
	}

	return nil
}
