package provider_test

import (
	"fmt"
	"testing"

	"github.com/hashicorp/terraform-plugin-testing/helper/resource"
)

func TestAccRecordsDataSource_basic(t *testing.T) {
	name := GenerateTestName()

	resource.Test(t, resource.TestCase{
		PreCheck:                 func() { testAccPreCheck(t) },
		ProtoV6ProviderFactories: testAccProtoV6ProviderFactories,
		Steps: []resource.TestStep{
			{
				Config: testAccRecordResourceConfig(name, "a@example.com") + fmt.Sprintf(`
data "ldapmodel_records" "test" {
  model = "person"
  where = {
    name = %[1]q
  }
  depends_on = [ldapmodel_record.test]
}

data "ldapmodel_count" "test" {
  model = "person"
  where = {
    name = %[1]q
  }
  depends_on = [ldapmodel_record.test]
}
`, name),
				Check: resource.ComposeAggregateTestCheckFunc(
					resource.TestCheckResourceAttr("data.ldapmodel_records.test", "records.#", "1"),
					resource.TestCheckResourceAttr("data.ldapmodel_records.test", "records.0.name", name),
					resource.TestCheckResourceAttr("data.ldapmodel_records.test", "records.0.email", "a@example.com"),
					resource.TestCheckResourceAttrPair("data.ldapmodel_records.test", "records.0.id", "ldapmodel_record.test", "id"),
					resource.TestCheckResourceAttr("data.ldapmodel_count.test", "total", "1"),
				),
			},
		},
	})
}
