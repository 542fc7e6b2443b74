package ldap

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

const defaultKrb5Config = "/etc/krb5.conf"

// kerberosCredentials is the resolved identity for one GSSAPI bind.
type kerberosCredentials struct {
	principal  string
	realm      string
	credential string
	keytab     string
	ccache     string
	krb5conf   string
}

// performKerberosAuth performs a GSSAPI bind on conn.
func performKerberosAuth(ctx context.Context, conn *ldap.Conn, cfg *SessionConfig, principal, credential string, server *ServerInfo) error {
	creds, err := resolveKerberosCredentials(cfg, principal, credential)
	if err != nil {
		return fmt.Errorf("kerberos configuration error: %w", err)
	}

	gssapiClient, err := createGSSAPIClient(ctx, creds)
	if err != nil {
		return fmt.Errorf("failed to create GSSAPI client: %w", err)
	}
	defer func() {
		_ = gssapiClient.DeleteSecContext()
	}()

	spn, err := buildServicePrincipal(cfg, server)
	if err != nil {
		return fmt.Errorf("failed to build service principal: %w", err)
	}

	LogKerberosEvent(ctx, "principal_resolved", map[string]any{
		"principal": creds.principal,
		"realm":     creds.realm,
		"spn":       spn,
	})

	if err := conn.GSSAPIBind(gssapiClient, spn, ""); err != nil {
		LogKerberosEvent(ctx, "authentication_failed", map[string]any{"spn": spn})
		return fmt.Errorf("GSSAPI bind failed: %w", err)
	}

	LogKerberosEvent(ctx, "ticket_acquired", map[string]any{"spn": spn})
	return nil
}

// resolveKerberosCredentials merges the bind principal with the session's
// Kerberos settings. A principal of the form user@REALM supplies the realm.
func resolveKerberosCredentials(cfg *SessionConfig, principal, credential string) (*kerberosCredentials, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	creds := &kerberosCredentials{
		principal:  principal,
		realm:      cfg.KerberosRealm,
		credential: credential,
		keytab:     cfg.KerberosKeytab,
		ccache:     cfg.KerberosCCache,
		krb5conf:   cfg.KerberosConfig,
	}

	if user, realm, ok := strings.Cut(principal, "@"); ok {
		creds.principal = user
		if creds.realm == "" {
			creds.realm = realm
		}
	}

	if creds.realm == "" {
		return nil, fmt.Errorf("kerberos realm is required")
	}

	hasCCache := creds.ccache != "" || fileExists(defaultCCachePath())
	if creds.principal == "" && !hasCCache {
		return nil, fmt.Errorf("principal is required for Kerberos authentication")
	}

	if !hasCCache && creds.keytab == "" && creds.credential == "" {
		return nil, fmt.Errorf("no suitable Kerberos credentials found: provide a credential cache, keytab, or password")
	}

	return creds, nil
}

// createGSSAPIClient creates a GSSAPI client.
// Priority order: credential cache → keytab → password.
func createGSSAPIClient(ctx context.Context, creds *kerberosCredentials) (ldap.GSSAPIClient, error) {
	krb5conf, cleanup, err := resolveKrb5Config(ctx, creds)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return newGSSAPIClient(ctx, creds, krb5conf)
}

// resolveKrb5Config returns the configuration file to load: the configured
// path, the system default, or a generated runtime file when neither exists.
func resolveKrb5Config(ctx context.Context, creds *kerberosCredentials) (string, func(), error) {
	noop := func() {}

	if creds.krb5conf != "" {
		if !fileExists(creds.krb5conf) {
			return "", noop, fmt.Errorf("kerberos configuration file not found at %s", creds.krb5conf)
		}
		return creds.krb5conf, noop, nil
	}

	if fileExists(defaultKrb5Config) {
		return defaultKrb5Config, noop, nil
	}

	return writeRuntimeKrb5Conf(ctx, creds.realm)
}

func newGSSAPIClient(ctx context.Context, creds *kerberosCredentials, krb5conf string) (ldap.GSSAPIClient, error) {

	ccache := creds.ccache
	if ccache == "" {
		ccache = defaultCCachePath()
	}

	if fileExists(ccache) {
		client, err := gssapi.NewClientFromCCache(ccache, krb5conf, krb5client.DisablePAFXFAST(true))
		if err != nil {
			LogKerberosEvent(ctx, "ccache_load_failed", map[string]any{"ccache": ccache, "error": err.Error()})
			return nil, err
		}
		LogKerberosEvent(ctx, "ccache_loaded", map[string]any{"ccache": ccache})
		return client, nil
	}

	if creds.keytab != "" {
		client, err := gssapi.NewClientWithKeytab(creds.principal, creds.realm, creds.keytab, krb5conf, krb5client.DisablePAFXFAST(true))
		if err != nil {
			LogKerberosEvent(ctx, "keytab_load_failed", map[string]any{"keytab": creds.keytab, "error": err.Error()})
			return nil, err
		}
		LogKerberosEvent(ctx, "keytab_loaded", map[string]any{"keytab": creds.keytab})
		return client, nil
	}

	if creds.credential != "" {
		return gssapi.NewClientWithPassword(creds.principal, creds.realm, creds.credential, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	return nil, fmt.Errorf("no suitable credentials found for Kerberos authentication")
}

// buildServicePrincipal returns the configured SPN or ldap/<host>.
func buildServicePrincipal(cfg *SessionConfig, server *ServerInfo) (string, error) {
	if cfg != nil && cfg.KerberosSPN != "" {
		return cfg.KerberosSPN, nil
	}

	if server == nil || server.Host == "" {
		return "", fmt.Errorf("hostname is required for service principal")
	}

	return "ldap/" + server.Host, nil
}

// defaultCCachePath returns the default credential cache location.
func defaultCCachePath() string {
	if ccache := os.Getenv("KRB5CCNAME"); ccache != "" {
		return strings.TrimPrefix(ccache, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

// fileExists checks if a file exists and is readable.
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	file, err := os.Open(path) // #nosec G304 - paths come from operator configuration
	if err != nil {
		return false
	}
	file.Close()
	return true
}
