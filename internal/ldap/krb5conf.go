package ldap

import (
	"context"
	"fmt"
	"os"
	"strings"

	krb5config "github.com/jcmturner/gokrb5/v8/config"
)

// runtimeKrb5Conf renders a minimal krb5.conf for realm that locates KDCs
// through DNS SRV records.
func runtimeKrb5Conf(realm string) (string, error) {
	if realm == "" {
		return "", fmt.Errorf("kerberos realm is required to generate a runtime configuration")
	}

	realm = strings.ToUpper(realm)
	domain := strings.ToLower(realm)

	conf := fmt.Sprintf(`[libdefaults]
    default_realm = %[1]s
    dns_lookup_kdc = true
    dns_lookup_realm = false
    rdns = false
    forwardable = true

[realms]
    %[1]s = {
    }

[domain_realm]
    .%[2]s = %[1]s
    %[2]s = %[1]s
`, realm, domain)

	if _, err := krb5config.NewFromString(conf); err != nil {
		return "", fmt.Errorf("invalid runtime krb5.conf: %w", err)
	}

	return conf, nil
}

// writeRuntimeKrb5Conf writes the runtime configuration for realm to a
// temporary file. The returned function removes it.
func writeRuntimeKrb5Conf(ctx context.Context, realm string) (string, func(), error) {
	noop := func() {}

	conf, err := runtimeKrb5Conf(realm)
	if err != nil {
		return "", noop, err
	}

	f, err := os.CreateTemp("", "ldapmodel-krb5-*.conf")
	if err != nil {
		return "", noop, fmt.Errorf("failed to create runtime krb5.conf: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	if _, err := f.WriteString(conf); err != nil {
		f.Close()
		cleanup()
		return "", noop, fmt.Errorf("failed to write runtime krb5.conf: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("failed to write runtime krb5.conf: %w", err)
	}

	LogKerberosEvent(ctx, "runtime_config_generated", map[string]any{
		"realm": strings.ToUpper(realm),
		"path":  path,
	})

	return path, cleanup, nil
}
