package provider_test

import (
	"context"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	this "github.com/isometry/terraform-provider-ldapmodel/internal/provider"
)

func TestProvider_Metadata(t *testing.T) {
	p := this.New("1.2.3")()

	resp := &provider.MetadataResponse{}
	p.Metadata(context.Background(), provider.MetadataRequest{}, resp)

	assert.Equal(t, "ldapmodel", resp.TypeName)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestProvider_Schema(t *testing.T) {
	p := this.New("test")()

	resp := &provider.SchemaResponse{}
	p.Schema(context.Background(), provider.SchemaRequest{}, resp)
	require.False(t, resp.Diagnostics.HasError(), "schema diagnostics: %v", resp.Diagnostics)

	expected := []string{
		"url", "bind_dn", "bind_password", "search_base", "search_base_filter", "timeout",
		"start_tls", "tls_ca_file", "skip_server_identity_check", "insecure_skip_verify",
		"kerberos_realm", "kerberos_keytab", "kerberos_config", "kerberos_ccache", "kerberos_spn",
		"models_file", "models_yaml",
	}
	for _, name := range expected {
		attr, ok := resp.Schema.Attributes[name]
		if assert.True(t, ok, "missing attribute %s", name) {
			assert.True(t, attr.IsOptional(), "%s should be optional", name)
		}
	}
	assert.Len(t, resp.Schema.Attributes, len(expected))

	assert.True(t, resp.Schema.Attributes["bind_password"].IsSensitive())
	assert.False(t, resp.Schema.Attributes["bind_dn"].IsSensitive())
}

func TestProvider_ConfigValidators(t *testing.T) {
	p := this.New("test")()

	withValidators, ok := p.(provider.ProviderWithConfigValidators)
	require.True(t, ok)
	assert.Len(t, withValidators.ConfigValidators(context.Background()), 2)
}

func TestProvider_Resources(t *testing.T) {
	p := this.New("test")()

	resources := p.Resources(context.Background())
	require.Len(t, resources, 1)

	var names []string
	for _, factory := range resources {
		names = append(names, typeNameOf(t, factory()))
	}
	assert.Equal(t, []string{"ldapmodel_record"}, names)
}

func TestProvider_DataSources(t *testing.T) {
	p := this.New("test")()

	dataSources := p.DataSources(context.Background())
	require.Len(t, dataSources, 2)

	var names []string
	for _, factory := range dataSources {
		names = append(names, typeNameOf(t, factory()))
	}
	assert.ElementsMatch(t, []string{"ldapmodel_records", "ldapmodel_count"}, names)
}

func TestProvider_Functions(t *testing.T) {
	p := this.New("test")()

	withFunctions, ok := p.(provider.ProviderWithFunctions)
	require.True(t, ok)
	assert.Len(t, withFunctions.Functions(context.Background()), 1)
}
