package provider

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-ldapmodel/internal/connector"
	ldapclient "github.com/isometry/terraform-provider-ldapmodel/internal/ldap"
	"github.com/isometry/terraform-provider-ldapmodel/internal/provider/helpers"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ resource.Resource = &RecordResource{}
var _ resource.ResourceWithConfigure = &RecordResource{}
var _ resource.ResourceWithImportState = &RecordResource{}

func NewRecordResource() resource.Resource {
	return &RecordResource{}
}

// RecordResource manages one model record stored as a directory entry.
type RecordResource struct {
	connector *connector.Connector
}

// RecordResourceModel describes the resource data model.
type RecordResourceModel struct {
	ID         types.String `tfsdk:"id"`         // directory-assigned identifier (computed)
	Model      types.String `tfsdk:"model"`      // model name from the mapping table
	Attributes types.Map    `tfsdk:"attributes"` // logical field -> value
}

func (r *RecordResource) Metadata(ctx context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_record"
}

func (r *RecordResource) Schema(ctx context.Context, req resource.SchemaRequest, resp *resource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Manages a record of a mapped model. The record is created as `cn=<cn>,<search base>` " +
			"and identified by the attribute the directory assigns (`entryUUID` by default). " +
			"Destroying the resource only removes it from state: directory entries are never deleted.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The identifier the directory assigned to the entry.",
				Computed:            true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"model": schema.StringAttribute{
				MarkdownDescription: "Name of the model in the provider's mapping table.",
				Required:            true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
			},
			"attributes": schema.MapAttribute{
				MarkdownDescription: "Record fields keyed by logical field name. Every key must be mapped by the model. " +
					"The field mapped to `cn` is required on create. Multi-valued attributes read back joined with `,`.",
				ElementType: types.StringType,
				Required:    true,
			},
		},
	}
}

func (r *RecordResource) Configure(ctx context.Context, req resource.ConfigureRequest, resp *resource.ConfigureResponse) {
	// Prevent panic if the provider has not been configured.
	if req.ProviderData == nil {
		return
	}

	conn, ok := req.ProviderData.(*connector.Connector)
	if !ok {
		resp.Diagnostics.AddError(
			"Unexpected Resource Configure Type",
			fmt.Sprintf("Expected *connector.Connector, got: %T. Please report this issue to the provider developers.", req.ProviderData),
		)
		return
	}

	r.connector = conn
}

func (r *RecordResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	var data RecordResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	record, err := helpers.MapToGo(ctx, data.Attributes)
	if err != nil {
		resp.Diagnostics.AddError("Invalid Attributes", err.Error())
		return
	}

	model := data.Model.ValueString()
	tflog.SubsystemDebug(ctx, ldapclient.SubsystemProvider, "Creating record", map[string]any{
		"model":  model,
		"fields": slices.Sorted(maps.Keys(record)),
	})

	done := ldapclient.LogResourceOperation(ctx, "ldapmodel_record", "create", map[string]any{"model": model})
	id, err := r.connector.Create(ctx, model, record)
	done(err)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Creating Record",
			fmt.Sprintf("Could not create %s record: %s", model, err.Error()),
		)
		return
	}

	tflog.SubsystemDebug(ctx, ldapclient.SubsystemProvider, "Created record", map[string]any{
		"model": model,
		"id":    id,
	})

	data.ID = types.StringValue(id)
	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *RecordResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	var data RecordResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	model := data.Model.ValueString()
	id := data.ID.ValueString()

	record, found, err := findRecord(ctx, r.connector, model, id)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Reading Record",
			fmt.Sprintf("Could not read %s record %s: %s", model, id, err.Error()),
		)
		return
	}

	if !found {
		tflog.SubsystemWarn(ctx, ldapclient.SubsystemProvider, "Record not found, removing from state", map[string]any{
			"model": model,
			"id":    id,
		})
		resp.State.RemoveResource(ctx)
		return
	}

	prior, err := helpers.MapToGo(ctx, data.Attributes)
	if err != nil {
		resp.Diagnostics.AddError("Invalid Attributes", err.Error())
		return
	}

	// Only fields already under management are refreshed; an import starts
	// with none and takes every field.
	refreshed := make(map[string]any, len(record))
	for field, value := range record {
		if _, managed := prior[field]; managed || data.Attributes.IsNull() {
			refreshed[field] = value
		}
	}

	attributes, diags := helpers.StringMapValue(ctx, refreshed)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	data.Attributes = attributes
	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *RecordResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	var data, state RecordResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}

	record, err := helpers.MapToGo(ctx, data.Attributes)
	if err != nil {
		resp.Diagnostics.AddError("Invalid Attributes", err.Error())
		return
	}

	previous, err := helpers.MapToGo(ctx, state.Attributes)
	if err != nil {
		resp.Diagnostics.AddError("Invalid Attributes", err.Error())
		return
	}

	var dropped []string
	for field := range previous {
		if _, ok := record[field]; !ok {
			dropped = append(dropped, field)
		}
	}
	if len(dropped) > 0 {
		slices.Sort(dropped)
		resp.Diagnostics.AddWarning(
			"Attributes Not Cleared",
			fmt.Sprintf("Fields %s were removed from configuration but keep their directory values: updates only replace attributes.",
				strings.Join(dropped, ", ")),
		)
	}

	model := state.Model.ValueString()
	id := state.ID.ValueString()

	tflog.SubsystemDebug(ctx, ldapclient.SubsystemProvider, "Updating record", map[string]any{
		"model": model,
		"id":    id,
	})

	done := ldapclient.LogResourceOperation(ctx, "ldapmodel_record", "update", map[string]any{"model": model, "id": id})
	_, err = r.connector.UpdateAttributes(ctx, model, id, record)
	done(err)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Updating Record",
			fmt.Sprintf("Could not update %s record %s: %s", model, id, err.Error()),
		)
		return
	}

	data.ID = state.ID
	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *RecordResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	var data RecordResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	tflog.SubsystemInfo(ctx, ldapclient.SubsystemProvider, "Removing record from state only", map[string]any{
		"model": data.Model.ValueString(),
		"id":    data.ID.ValueString(),
	})

	resp.Diagnostics.AddWarning(
		"Record Not Deleted",
		fmt.Sprintf("The %s record %s was removed from Terraform state but still exists in the directory.",
			data.Model.ValueString(), data.ID.ValueString()),
	)
}

func (r *RecordResource) ImportState(ctx context.Context, req resource.ImportStateRequest, resp *resource.ImportStateResponse) {
	model, id, ok := strings.Cut(strings.TrimSpace(req.ID), "/")
	if !ok || model == "" || id == "" {
		resp.Diagnostics.AddError(
			"Invalid Import ID",
			fmt.Sprintf("Expected an import ID of the form <model>/<id>, got %q.", req.ID),
		)
		return
	}

	tflog.Debug(ctx, "Importing record", map[string]any{
		"model": model,
		"id":    id,
	})

	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("model"), model)...)
	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("id"), id)...)
	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("attributes"), types.MapNull(types.StringType))...)
}

// findRecord looks a record up by its identifier. The identifier field is
// dropped from the returned record.
func findRecord(ctx context.Context, conn *connector.Connector, modelName, id string) (connector.Record, bool, error) {
	if conn == nil {
		return nil, false, errors.New("provider is not configured")
	}

	model, err := conn.Mapper().Model(modelName)
	if err != nil {
		return nil, false, err
	}
	if !model.Mapping.Has(model.IDField) {
		return nil, false, fmt.Errorf("model %q must map its id field %q to be read back", modelName, model.IDField)
	}

	records, err := conn.All(ctx, modelName, &connector.Filter{
		Where: connector.Predicate{model.IDField: id},
	})
	if err != nil {
		return nil, false, err
	}
	if len(records) == 0 {
		return nil, false, nil
	}

	record := records[0]
	delete(record, model.IDField)
	return record, true, nil
}
