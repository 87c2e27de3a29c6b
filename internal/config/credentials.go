package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Credentials are the API user's login for the password grant.
type Credentials struct {
	Username string `json:"user" yaml:"user"`
	Password string `json:"pw" yaml:"pw"`
}

// String keeps the password out of logs and error messages.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{user=%s, pw=[redacted]}", c.Username)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadCredentials reads the secret file, either pw.json or a YAML
// equivalent.
func LoadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: failed to read secret file: %v", ErrConfig, err)
	}

	creds, ok := parseCredentials(data)
	if !ok {
		// the parser error may quote file content
		return Credentials{}, fmt.Errorf("%w: secret file %s is not valid JSON or YAML", ErrConfig, path)
	}

	if creds.Username == "" {
		return Credentials{}, fmt.Errorf("%w: secret file %s is missing field user", ErrConfig, path)
	}
	if creds.Password == "" {
		return Credentials{}, fmt.Errorf("%w: secret file %s is missing field pw", ErrConfig, path)
	}
	return creds, nil
}

// parseCredentials decodes JSON objects with encoding/json and falls back
// to YAML, which also covers JSON with unquoted scalars such as a numeric pw.
func parseCredentials(data []byte) (Credentials, bool) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var creds Credentials
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &creds); err == nil {
			return creds, true
		}
		creds = Credentials{}
	}
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return Credentials{}, false
	}
	return creds, true
}
