package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/function"

	ldapclient "github.com/isometry/terraform-provider-ldapmodel/internal/ldap"
)

var _ function.Function = &BuildDNFunction{}

func NewBuildDNFunction() function.Function {
	return &BuildDNFunction{}
}

// BuildDNFunction implements the build_dn function: the same escaped
// naming the record resource uses on create.
type BuildDNFunction struct{}

// Metadata returns the function name and signature.
func (f BuildDNFunction) Metadata(_ context.Context, req function.MetadataRequest, resp *function.MetadataResponse) {
	resp.Name = "build_dn"
}

// Definition returns the function schema including parameters and return types.
func (f BuildDNFunction) Definition(_ context.Context, req function.DefinitionRequest, resp *function.DefinitionResponse) {
	resp.Definition = function.Definition{
		Summary:     "Build a distinguished name from an RDN and a parent",
		Description: "Returns attribute=value,parent with the value escaped as RFC 4514 requires.",
		MarkdownDescription: "Returns `attribute=value,parent` with the value escaped as RFC 4514 requires, " +
			"e.g. `build_dn(\"cn\", \"Smith, Alice\", \"ou=people,dc=example,dc=com\")` yields " +
			"`cn=Smith\\, Alice,ou=people,dc=example,dc=com`.",
		Parameters: []function.Parameter{
			function.StringParameter{
				Name:        "attribute",
				Description: "RDN attribute type, e.g. cn.",
			},
			function.StringParameter{
				Name:        "value",
				Description: "Unescaped RDN value.",
			},
			function.StringParameter{
				Name:        "parent",
				Description: "Parent DN. May be empty.",
			},
		},
		Return: function.StringReturn{},
	}
}

// Run implements the function logic.
func (f BuildDNFunction) Run(ctx context.Context, req function.RunRequest, resp *function.RunResponse) {
	var attribute, value, parent string

	resp.Error = function.ConcatFuncErrors(resp.Error, req.Arguments.Get(ctx, &attribute, &value, &parent))
	if resp.Error != nil {
		return
	}

	dn, err := ldapclient.BuildDN(attribute, value, parent)
	if err != nil {
		resp.Error = function.NewFuncError(err.Error())
		return
	}

	resp.Error = resp.Result.Set(ctx, dn)
}
