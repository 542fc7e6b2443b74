/*
Package ldap provides the directory session used by the model connector.

A Session owns a single connection to one directory endpoint. It is bound once
with the configured principal and then shared by every operation; go-ldap
multiplexes concurrent requests over the connection by message ID. There is no
pooling, retry or reconnection: a dropped connection surfaces as an error on
the next request.

# Searches

Search returns a channel of SearchEvent values. Entries and referrals are
delivered in arrival order, followed by exactly one terminal event (Error or
Done), after which the channel is closed. Cancelling the context abandons the
request on the wire.

# Authentication

Simple bind is used unless a Kerberos realm is configured, in which case the
session performs a GSSAPI bind using, in order of preference, a credential
cache, a keytab, or the bind password. When neither the configured nor the
system krb5.conf exists, a temporary one is generated that finds the realm's
KDCs through DNS.

# Binary attributes

GUIDHandler and SIDHandler convert objectGUID and objectSid values to their
string forms for display and back again for filter assertions.

# Example Usage

	session, err := ldap.NewSession(&ldap.SessionConfig{
		URL:              "ldaps://ldap.example.com",
		Timeout:          30 * time.Second,
		SearchBufferSize: 64,
	})
	if err != nil {
		return err
	}

	if err := session.Bind(ctx, "cn=admin,dc=example,dc=com", password); err != nil {
		return err
	}
	defer session.Unbind(ctx)

	for event := range session.Search(ctx, &ldap.SearchRequest{
		BaseDN: "ou=people,dc=example,dc=com",
		Scope:  ldap.ScopeWholeSubtree,
		Filter: "(cn=alice)",
	}) {
		// handle event
	}
*/
package ldap
