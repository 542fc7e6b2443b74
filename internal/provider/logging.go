package provider

import (
	"context"

	ldapclient "github.com/isometry/terraform-provider-ldapmodel/internal/ldap"
)

// initializeLogging registers the provider's log subsystems on ctx.
// Resource and data source entry points call it before doing any work,
// since the context handed to them does not carry the subsystems set
// up in Configure.
func initializeLogging(ctx context.Context) context.Context {
	return ldapclient.WithSubsystems(ctx)
}
