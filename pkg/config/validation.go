package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/smbkit/pkg/credential"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags first, then the cross-field rules tags
// cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if cfg.Client.Retry.MaxDelay > 0 && cfg.Client.Retry.MaxDelay < cfg.Client.Retry.InitialDelay {
		return fmt.Errorf("client.retry.max_delay (%s) is shorter than initial_delay (%s)",
			cfg.Client.Retry.MaxDelay, cfg.Client.Retry.InitialDelay)
	}

	for i, c := range cfg.Credentials {
		cred, err := credential.New(c.Domain, c.Username, "", c.Path)
		if err != nil {
			return fmt.Errorf("credentials[%d]: %w", i, err)
		}
		if cred.Domain == "" {
			return fmt.Errorf("credentials[%d]: domain is required (set domain or use DOMAIN\\user)", i)
		}
	}
	return nil
}

// password returns the configured password, reading PasswordEnv when set.
func (c CredentialConfig) password() (string, error) {
	if c.PasswordEnv == "" {
		return c.Password, nil
	}
	pw, ok := os.LookupEnv(c.PasswordEnv)
	if !ok || pw == "" {
		return "", fmt.Errorf("environment variable %s is not set", c.PasswordEnv)
	}
	return pw, nil
}
