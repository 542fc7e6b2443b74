package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/isometry/terraform-provider-ldapmodel/internal/connector"
)

const EnvPrefix = "LDAPMODEL"

// Viper keys. Flags use the same names with "-" in place of "_".
const (
	keyModelsFile   = "models_file"
	keyURL          = "url"
	keyBindDN       = "bind_dn"
	keyBindPassword = "bind_password"
	keySearchBase   = "search_base"
	keyTimeout      = "timeout"
	keyStartTLS     = "start_tls"
	keyDebug        = "debug"
	keyOutput       = "output"
)

func newViper() *viper.Viper {
	v := viper.NewWithOptions(
		viper.KeyDelimiter("."),
		viper.EnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_")),
	)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault(keyOutput, outputJSON)

	return v
}

// bindFlags binds every flag in flags to the viper key of the same name.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		err = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
	return err
}

// loadSettings reads the models file and applies flag and environment
// overrides on top of it.
func loadSettings(v *viper.Viper) (*connector.Settings, error) {
	file := v.GetString(keyModelsFile)
	if file == "" {
		return nil, fmt.Errorf("a models file is required: pass --models-file or set %s_MODELS_FILE", EnvPrefix)
	}

	settings, err := connector.LoadSettings(file)
	if err != nil {
		return nil, err
	}

	overrideString(&settings.URL, v.GetString(keyURL))
	overrideString(&settings.BindDN, v.GetString(keyBindDN))
	overrideString(&settings.BindPassword, v.GetString(keyBindPassword))
	overrideString(&settings.SearchBase, v.GetString(keySearchBase))

	if timeout := v.GetDuration(keyTimeout); timeout > 0 {
		settings.Timeout = timeout
	}
	if v.IsSet(keyStartTLS) {
		settings.StartTLS = v.GetBool(keyStartTLS)
	}

	return settings, nil
}

func overrideString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
