package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const configHeader = `# smbkit configuration file
#
# Every key can be overridden by an environment variable with the SMBKIT_
# prefix, e.g. SMBKIT_CLIENT_SESSION_TIMEOUT=10s.
#
# Credentials are registered at startup. Prefer password_env over password:
#
# credentials:
#   - path: \\fileserver\docs
#     domain: CORP
#     username: alice
#     password_env: SMBKIT_DOCS_PASSWORD
`

// InitConfig writes a configuration file with default values to the
// default location and returns its path. An existing file is only
// replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigAt(path, force)
}

// InitConfigAt is InitConfig for an explicit path.
func InitConfigAt(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}

	body, err := yaml.Marshal(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)
	buf.WriteString("\n")
	buf.Write(body)

	if err := SaveRaw(path, buf.Bytes()); err != nil {
		return err
	}
	return nil
}
