package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-ldapmodel/internal/connector"
	ldapclient "github.com/isometry/terraform-provider-ldapmodel/internal/ldap"
	"github.com/isometry/terraform-provider-ldapmodel/internal/provider/helpers"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &CountDataSource{}
var _ datasource.DataSourceWithConfigure = &CountDataSource{}

func NewCountDataSource() datasource.DataSource {
	return &CountDataSource{}
}

// CountDataSource counts the records of a model matching an equality predicate.
type CountDataSource struct {
	connector *connector.Connector
}

// CountDataSourceModel describes the data source data model.
type CountDataSourceModel struct {
	ID    types.String `tfsdk:"id"`
	Model types.String `tfsdk:"model"`
	Where types.Map    `tfsdk:"where"`
	Total types.Int64  `tfsdk:"total"`
}

func (d *CountDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_count"
}

func (d *CountDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Counts the records of a model matching an equality predicate. " +
			"`total` is `-1` when the directory search failed.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The model name.",
				Computed:            true,
			},
			"model": schema.StringAttribute{
				MarkdownDescription: "Name of the model in the provider's mapping table.",
				Required:            true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"where": schema.MapAttribute{
				MarkdownDescription: "Equality predicate keyed by logical field name. Omit to count every record.",
				ElementType:         types.StringType,
				Optional:            true,
			},
			"total": schema.Int64Attribute{
				MarkdownDescription: "Number of matching records, or `-1` on a directory failure.",
				Computed:            true,
			},
		},
	}
}

func (d *CountDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	// Prevent panic if the provider has not been configured.
	if req.ProviderData == nil {
		return
	}

	conn, ok := req.ProviderData.(*connector.Connector)
	if !ok {
		resp.Diagnostics.AddError(
			"Unexpected Data Source Configure Type",
			fmt.Sprintf("Expected *connector.Connector, got: %T. Please report this issue to the provider developers.", req.ProviderData),
		)
		return
	}

	d.connector = conn
}

func (d *CountDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data CountDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	where, err := helpers.MapToGo(ctx, data.Where)
	if err != nil {
		resp.Diagnostics.AddError("Invalid Predicate", err.Error())
		return
	}

	model := data.Model.ValueString()
	done := ldapclient.LogDataSourceOperation(ctx, "ldapmodel_count", "read", map[string]any{"model": model})
	count, err := d.connector.Count(ctx, model, where)
	done(err)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Counting Records",
			fmt.Sprintf("Could not count %s records: %s", model, err.Error()),
		)
		return
	}

	if count < 0 {
		resp.Diagnostics.AddWarning(
			"Count Unavailable",
			fmt.Sprintf("The directory search for %s records failed; total is -1. Enable TF_LOG_PROVIDER_LDAPMODEL_CONNECTOR=debug for details.", model),
		)
	}

	tflog.SubsystemDebug(ctx, ldapclient.SubsystemProvider, "Counted records", map[string]any{
		"model": model,
		"count": count,
	})

	data.ID = types.StringValue(model)
	data.Total = types.Int64Value(int64(count))
	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
