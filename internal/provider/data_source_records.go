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
var _ datasource.DataSource = &RecordsDataSource{}
var _ datasource.DataSourceWithConfigure = &RecordsDataSource{}

func NewRecordsDataSource() datasource.DataSource {
	return &RecordsDataSource{}
}

// RecordsDataSource lists the records of a model matching an equality predicate.
type RecordsDataSource struct {
	connector *connector.Connector
}

// RecordsDataSourceModel describes the data source data model.
type RecordsDataSourceModel struct {
	ID      types.String `tfsdk:"id"`
	Model   types.String `tfsdk:"model"`
	Where   types.Map    `tfsdk:"where"`
	Records types.List   `tfsdk:"records"`
}

func (d *RecordsDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_records"
}

func (d *RecordsDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Lists the records of a model. Every `where` entry must match exactly; entries are combined with AND.",

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
				MarkdownDescription: "Equality predicate keyed by logical field name. Omit to list every record.",
				ElementType:         types.StringType,
				Optional:            true,
			},
			"records": schema.ListAttribute{
				MarkdownDescription: "Matching records in the order the directory returned them. " +
					"Only fields present on an entry are set; multi-valued attributes are joined with `,`.",
				ElementType: types.MapType{ElemType: types.StringType},
				Computed:    true,
			},
		},
	}
}

func (d *RecordsDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
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

func (d *RecordsDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data RecordsDataSourceModel

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
	done := ldapclient.LogDataSourceOperation(ctx, "ldapmodel_records", "read", map[string]any{"model": model})
	records, err := d.connector.All(ctx, model, &connector.Filter{Where: where})
	done(err)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Listing Records",
			fmt.Sprintf("Could not list %s records: %s", model, err.Error()),
		)
		return
	}

	tflog.SubsystemDebug(ctx, ldapclient.SubsystemProvider, "Listed records", map[string]any{
		"model":   model,
		"records": len(records),
	})

	flattened := make([]map[string]string, len(records))
	for i, record := range records {
		flat := make(map[string]string, len(record))
		for field, value := range record {
			flat[field] = helpers.FlattenValue(value)
		}
		flattened[i] = flat
	}

	list, diags := types.ListValueFrom(ctx, types.MapType{ElemType: types.StringType}, flattened)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	data.ID = types.StringValue(model)
	data.Records = list
	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
