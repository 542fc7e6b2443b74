package provider

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/terraform-plugin-framework-validators/providervalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/provider/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-ldapmodel/internal/connector"
	ldapclient "github.com/isometry/terraform-provider-ldapmodel/internal/ldap"
	"github.com/isometry/terraform-provider-ldapmodel/internal/provider/validators"
)

// Ensure LDAPModelProvider satisfies various provider interfaces.
var _ provider.Provider = &LDAPModelProvider{}
var _ provider.ProviderWithFunctions = &LDAPModelProvider{}
var _ provider.ProviderWithConfigValidators = &LDAPModelProvider{}

// Environment variables consulted when the matching attribute is unset.
const (
	EnvURL                     = "LDAPMODEL_URL"
	EnvBindDN                  = "LDAPMODEL_BIND_DN"
	EnvBindPassword            = "LDAPMODEL_BIND_PASSWORD"
	EnvSearchBase              = "LDAPMODEL_SEARCH_BASE"
	EnvSearchBaseFilter        = "LDAPMODEL_SEARCH_BASE_FILTER"
	EnvTimeout                 = "LDAPMODEL_TIMEOUT"
	EnvStartTLS                = "LDAPMODEL_START_TLS"
	EnvTLSCAFile               = "LDAPMODEL_TLS_CA_FILE"
	EnvSkipServerIdentityCheck = "LDAPMODEL_SKIP_SERVER_IDENTITY_CHECK"
	EnvInsecureSkipVerify      = "LDAPMODEL_INSECURE_SKIP_VERIFY"
	EnvKerberosRealm           = "LDAPMODEL_KERBEROS_REALM"
	EnvKerberosKeytab          = "LDAPMODEL_KERBEROS_KEYTAB"
	EnvKerberosConfig          = "LDAPMODEL_KERBEROS_CONFIG"
	EnvKerberosCCache          = "LDAPMODEL_KERBEROS_CCACHE"
	EnvKerberosSPN             = "LDAPMODEL_KERBEROS_SPN"
	EnvModelsFile              = "LDAPMODEL_MODELS_FILE"
)

// LDAPModelProvider defines the provider implementation.
type LDAPModelProvider struct {
	// version is set to the provider version on release, "dev" when the
	// provider is built and ran locally, and "test" when running acceptance
	// testing.
	version string
}

// LDAPModelProviderModel describes the provider data model.
type LDAPModelProviderModel struct {
	URL              types.String `tfsdk:"url"`
	BindDN           types.String `tfsdk:"bind_dn"`
	BindPassword     types.String `tfsdk:"bind_password"`
	SearchBase       types.String `tfsdk:"search_base"`
	SearchBaseFilter types.String `tfsdk:"search_base_filter"`
	Timeout          types.Int64  `tfsdk:"timeout"`

	// TLS settings
	StartTLS                types.Bool   `tfsdk:"start_tls"`
	TLSCAFile               types.String `tfsdk:"tls_ca_file"`
	SkipServerIdentityCheck types.Bool   `tfsdk:"skip_server_identity_check"`
	InsecureSkipVerify      types.Bool   `tfsdk:"insecure_skip_verify"`

	// Kerberos settings (optional)
	KerberosRealm  types.String `tfsdk:"kerberos_realm"`
	KerberosKeytab types.String `tfsdk:"kerberos_keytab"`
	KerberosConfig types.String `tfsdk:"kerberos_config"`
	KerberosCCache types.String `tfsdk:"kerberos_ccache"`
	KerberosSPN    types.String `tfsdk:"kerberos_spn"`

	// Model mapping table
	ModelsFile types.String `tfsdk:"models_file"`
	ModelsYAML types.String `tfsdk:"models_yaml"`
}

func (p *LDAPModelProvider) Metadata(ctx context.Context, req provider.MetadataRequest, resp *provider.MetadataResponse) {
	resp.TypeName = "ldapmodel"
	resp.Version = p.version
}

func (p *LDAPModelProvider) Schema(ctx context.Context, req provider.SchemaRequest, resp *provider.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "The ldapmodel provider stores records of logical models as entries in an LDAP directory. " +
			"A YAML mapping table translates each model's fields to directory attributes.",
		Attributes: map[string]schema.Attribute{
			"url": schema.StringAttribute{
				MarkdownDescription: "Directory URL (e.g., `ldaps://ldap.example.com:636`). " +
					"Overrides the `url` of the models file. Can be set via the `LDAPMODEL_URL` environment variable.",
				Optional: true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"bind_dn": schema.StringAttribute{
				MarkdownDescription: "Bind principal. A DN for simple binds, or a user principal when Kerberos is configured. " +
					"Can be set via the `LDAPMODEL_BIND_DN` environment variable.",
				Optional: true,
			},
			"bind_password": schema.StringAttribute{
				MarkdownDescription: "Bind credential. An empty credential performs an unauthenticated bind. " +
					"Can be set via the `LDAPMODEL_BIND_PASSWORD` environment variable.",
				Optional:  true,
				Sensitive: true,
			},
			"search_base": schema.StringAttribute{
				MarkdownDescription: "Default search base for models that do not set their own. " +
					"Can be set via the `LDAPMODEL_SEARCH_BASE` environment variable.",
				Optional: true,
				Validators: []validator.String{
					validators.IsValidDN(),
				},
			},
			"search_base_filter": schema.StringAttribute{
				MarkdownDescription: "Filter used when a query has no predicate and the model has no base filter. Defaults to `(objectClass=*)`. " +
					"Can be set via the `LDAPMODEL_SEARCH_BASE_FILTER` environment variable.",
				Optional: true,
				Validators: []validator.String{
					validators.IsValidFilter(),
				},
			},
			"timeout": schema.Int64Attribute{
				MarkdownDescription: "Connection and request timeout in seconds. Defaults to `30`. " +
					"Can be set via the `LDAPMODEL_TIMEOUT` environment variable.",
				Optional: true,
			},

			// TLS settings
			"start_tls": schema.BoolAttribute{
				MarkdownDescription: "Upgrade `ldap://` connections with StartTLS. Defaults to `false`. " +
					"Can be set via the `LDAPMODEL_START_TLS` environment variable.",
				Optional: true,
			},
			"tls_ca_file": schema.StringAttribute{
				MarkdownDescription: "Path to a PEM bundle appended to the system certificate pool. " +
					"Can be set via the `LDAPMODEL_TLS_CA_FILE` environment variable.",
				Optional: true,
			},
			"skip_server_identity_check": schema.BoolAttribute{
				MarkdownDescription: "Skip hostname verification while still validating the certificate chain. Defaults to `false`. " +
					"Can be set via the `LDAPMODEL_SKIP_SERVER_IDENTITY_CHECK` environment variable.",
				Optional: true,
			},
			"insecure_skip_verify": schema.BoolAttribute{
				MarkdownDescription: "Skip all certificate verification. Not recommended for production. Defaults to `false`. " +
					"Can be set via the `LDAPMODEL_INSECURE_SKIP_VERIFY` environment variable.",
				Optional: true,
			},

			// Kerberos settings
			"kerberos_realm": schema.StringAttribute{
				MarkdownDescription: "Kerberos realm for GSSAPI authentication (e.g., `EXAMPLE.COM`). " +
					"Can be set via the `LDAPMODEL_KERBEROS_REALM` environment variable.",
				Optional: true,
			},
			"kerberos_keytab": schema.StringAttribute{
				MarkdownDescription: "Path to a Kerberos keytab file. " +
					"Can be set via the `LDAPMODEL_KERBEROS_KEYTAB` environment variable.",
				Optional: true,
			},
			"kerberos_config": schema.StringAttribute{
				MarkdownDescription: "Path to the Kerberos configuration file. Defaults to the system default. " +
					"Can be set via the `LDAPMODEL_KERBEROS_CONFIG` environment variable.",
				Optional: true,
			},
			"kerberos_ccache": schema.StringAttribute{
				MarkdownDescription: "Path to a Kerberos credential cache. " +
					"Can be set via the `LDAPMODEL_KERBEROS_CCACHE` environment variable.",
				Optional: true,
			},
			"kerberos_spn": schema.StringAttribute{
				MarkdownDescription: "Override the service principal name, e.g. `ldap/ldap1.example.com`. " +
					"Can be set via the `LDAPMODEL_KERBEROS_SPN` environment variable.",
				Optional: true,
			},

			// Model mapping table
			"models_file": schema.StringAttribute{
				MarkdownDescription: "Path to the YAML settings file holding the `models` mapping table. " +
					"Mutually exclusive with `models_yaml`. Can be set via the `LDAPMODEL_MODELS_FILE` environment variable.",
				Optional: true,
			},
			"models_yaml": schema.StringAttribute{
				MarkdownDescription: "Inline YAML settings document. Mutually exclusive with `models_file`.",
				Optional:            true,
			},
		},
	}
}

// ConfigValidators implements provider.ProviderWithConfigValidators.
func (p *LDAPModelProvider) ConfigValidators(ctx context.Context) []provider.ConfigValidator {
	return []provider.ConfigValidator{
		providervalidator.Conflicting(
			path.MatchRoot("models_file"),
			path.MatchRoot("models_yaml"),
		),
		providervalidator.Conflicting(
			path.MatchRoot("skip_server_identity_check"),
			path.MatchRoot("insecure_skip_verify"),
		),
	}
}

func (p *LDAPModelProvider) Configure(ctx context.Context, req provider.ConfigureRequest, resp *provider.ConfigureResponse) {
	var data LDAPModelProviderModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	ctx = p.configureLogging(ctx)

	tflog.Info(ctx, "Configuring ldapmodel provider", map[string]any{
		"version": p.version,
	})

	settings, err := p.buildSettings(&data)
	if err != nil {
		resp.Diagnostics.AddError(
			"Invalid Provider Configuration",
			"The provider settings could not be loaded.\n\n"+
				"Configuration Error: "+err.Error(),
		)
		return
	}

	session, err := ldapclient.NewSession(settings.SessionConfig())
	if err != nil {
		resp.Diagnostics.AddError(
			"Unable to Create Directory Session",
			"An unexpected error occurred when creating the directory session.\n\n"+
				"Session Error: "+err.Error(),
		)
		return
	}

	conn, err := connector.NewConnector(settings, session)
	if err != nil {
		resp.Diagnostics.AddError(
			"Invalid Model Mapping",
			"The model mapping table is not valid.\n\n"+
				"Configuration Error: "+err.Error(),
		)
		return
	}

	start := time.Now()
	if err := conn.Connect(ctx); err != nil {
		tflog.Error(ctx, "Directory bind failed", map[string]any{
			"error":       err.Error(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		resp.Diagnostics.AddError(
			"Unable to Connect to Directory",
			"The provider could not connect and bind to the directory. "+
				"Please verify your connection and authentication settings.\n\n"+
				"Connection Error: "+err.Error(),
		)
		return
	}

	tflog.Info(ctx, "ldapmodel provider configured successfully", map[string]any{
		"models":      conn.Models(),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	resp.DataSourceData = conn
	resp.ResourceData = conn
}

// configureLogging registers the log subsystems and persistent fields.
func (p *LDAPModelProvider) configureLogging(ctx context.Context) context.Context {
	ctx = ldapclient.WithSubsystems(ctx)
	ctx = tflog.SetField(ctx, "provider", "ldapmodel")
	ctx = tflog.SetField(ctx, "provider_version", p.version)

	tflog.Debug(ctx, "ldapmodel provider logging configured")

	return ctx
}

// buildSettings loads the models file (or inline document) and applies
// provider attributes and environment variables on top of it.
func (p *LDAPModelProvider) buildSettings(data *LDAPModelProviderModel) (*connector.Settings, error) {
	var (
		settings *connector.Settings
		err      error
	)

	switch {
	case !data.ModelsYAML.IsNull() && data.ModelsYAML.ValueString() != "":
		settings, err = connector.ParseSettings([]byte(data.ModelsYAML.ValueString()))
	default:
		file := p.getStringValue(data.ModelsFile, EnvModelsFile)
		if file == "" {
			return nil, fmt.Errorf("one of models_file, models_yaml or %s is required", EnvModelsFile)
		}
		settings, err = connector.LoadSettings(file)
	}
	if err != nil {
		return nil, err
	}

	overrideString(&settings.URL, p.getStringValue(data.URL, EnvURL))
	overrideString(&settings.BindDN, p.getStringValue(data.BindDN, EnvBindDN))
	overrideString(&settings.BindPassword, p.getStringValue(data.BindPassword, EnvBindPassword))
	overrideString(&settings.SearchBase, p.getStringValue(data.SearchBase, EnvSearchBase))
	overrideString(&settings.SearchBaseFilter, p.getStringValue(data.SearchBaseFilter, EnvSearchBaseFilter))

	if timeout := p.getInt64Value(data.Timeout, EnvTimeout, 0); timeout > 0 {
		settings.Timeout = time.Duration(timeout) * time.Second
	}

	settings.StartTLS = p.getBoolValue(data.StartTLS, EnvStartTLS, settings.StartTLS)
	overrideString(&settings.TLS.CAFile, p.getStringValue(data.TLSCAFile, EnvTLSCAFile))
	settings.TLS.SkipServerIdentityCheck = p.getBoolValue(data.SkipServerIdentityCheck, EnvSkipServerIdentityCheck, settings.TLS.SkipServerIdentityCheck)
	settings.TLS.InsecureSkipVerify = p.getBoolValue(data.InsecureSkipVerify, EnvInsecureSkipVerify, settings.TLS.InsecureSkipVerify)

	overrideString(&settings.Kerberos.Realm, p.getStringValue(data.KerberosRealm, EnvKerberosRealm))
	overrideString(&settings.Kerberos.Keytab, p.getStringValue(data.KerberosKeytab, EnvKerberosKeytab))
	overrideString(&settings.Kerberos.Config, p.getStringValue(data.KerberosConfig, EnvKerberosConfig))
	overrideString(&settings.Kerberos.CCache, p.getStringValue(data.KerberosCCache, EnvKerberosCCache))
	overrideString(&settings.Kerberos.SPN, p.getStringValue(data.KerberosSPN, EnvKerberosSPN))

	return settings, nil
}

func overrideString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// Helper functions for configuration value resolution

func (p *LDAPModelProvider) getStringValue(configValue types.String, envVar string) string {
	if !configValue.IsNull() && configValue.ValueString() != "" {
		return configValue.ValueString()
	}
	return os.Getenv(envVar)
}

func (p *LDAPModelProvider) getBoolValue(configValue types.Bool, envVar string, defaultValue bool) bool {
	if !configValue.IsNull() {
		return configValue.ValueBool()
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		if parsed, err := strconv.ParseBool(envValue); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func (p *LDAPModelProvider) getInt64Value(configValue types.Int64, envVar string, defaultValue int64) int64 {
	if !configValue.IsNull() {
		return configValue.ValueInt64()
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		if parsed, err := strconv.ParseInt(envValue, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func (p *LDAPModelProvider) Resources(ctx context.Context) []func() resource.Resource {
	return []func() resource.Resource{
		NewRecordResource,
	}
}

func (p *LDAPModelProvider) DataSources(ctx context.Context) []func() datasource.DataSource {
	return []func() datasource.DataSource{
		NewRecordsDataSource,
		NewCountDataSource,
	}
}

func (p *LDAPModelProvider) Functions(ctx context.Context) []func() function.Function {
	return []func() function.Function{
		NewBuildDNFunction,
	}
}

func New(version string) func() provider.Provider {
	return func() provider.Provider {
		return &LDAPModelProvider{
			version: version,
		}
	}
}
