package provider_test

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/terraform-plugin-framework/providerserver"
	"github.com/hashicorp/terraform-plugin-go/tfprotov6"

	this "github.com/isometry/terraform-provider-ldapmodel/internal/provider"
)

// Environment variables for acceptance test configuration.
const (
	EnvTestURL          = "LDAPMODEL_TEST_URL"
	EnvTestBindDN       = "LDAPMODEL_TEST_BIND_DN"
	EnvTestBindPassword = "LDAPMODEL_TEST_BIND_PASSWORD"
	EnvTestSearchBase   = "LDAPMODEL_TEST_SEARCH_BASE"

	DefaultTestSearchBase = "ou=people,dc=example,dc=com"
	TestRecordPrefix      = "tf-test-"
)

// testAccProtoV6ProviderFactories is used to instantiate a provider during acceptance testing.
// The factory function is called for each Terraform CLI command to create a provider
// server that the CLI can connect to and interact with.
var testAccProtoV6ProviderFactories = map[string]func() (tfprotov6.ProviderServer, error){
	"ldapmodel": providerserver.NewProtocol6WithError(this.New("test")()),
}

// TestConfig holds the acceptance test directory settings.
type TestConfig struct {
	URL          string
	BindDN       string
	BindPassword string
	SearchBase   string
}

// GetTestConfig returns the test configuration from environment variables.
func GetTestConfig() *TestConfig {
	return &TestConfig{
		URL:          os.Getenv(EnvTestURL),
		BindDN:       os.Getenv(EnvTestBindDN),
		BindPassword: os.Getenv(EnvTestBindPassword),
		SearchBase:   getEnvWithDefault(EnvTestSearchBase, DefaultTestSearchBase),
	}
}

func testAccPreCheck(t *testing.T) {
	if os.Getenv("TF_ACC") == "" {
		t.Skip("Skipping acceptance test - set TF_ACC=1 to run")
	}

	if GetTestConfig().URL == "" {
		t.Skipf("Skipping test: %s must be set", EnvTestURL)
	}
}

// testAccProviderConfig renders a provider block with an inline person model
// rooted at the test search base.
func testAccProviderConfig() string {
	config := GetTestConfig()

	var b strings.Builder
	b.WriteString("provider \"ldapmodel\" {\n")
	fmt.Fprintf(&b, "  url           = %q\n", config.URL)
	fmt.Fprintf(&b, "  bind_dn       = %q\n", config.BindDN)
	fmt.Fprintf(&b, "  bind_password = %q\n", config.BindPassword)
	b.WriteString("  models_yaml   = <<-EOT\n")
	b.WriteString("    models:\n")
	b.WriteString("      person:\n")
	b.WriteString("        mapping:\n")
	b.WriteString("          id: entryUUID\n")
	b.WriteString("          name: cn\n")
	b.WriteString("          surname: sn\n")
	b.WriteString("          email: mail\n")
	b.WriteString("        objectclass: [inetOrgPerson]\n")
	fmt.Fprintf(&b, "        search_base: %s\n", config.SearchBase)
	b.WriteString("  EOT\n")
	b.WriteString("}\n")
	return b.String()
}

// GenerateTestName generates a unique record name.
func GenerateTestName() string {
	return fmt.Sprintf("%s%s-%s", TestRecordPrefix, time.Now().Format("20060102-150405"), uuid.New().String()[:8])
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
