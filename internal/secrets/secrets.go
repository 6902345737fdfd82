// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Recognized key files are listed in ConfigKeys.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ConfigKeys maps secret file names to the configuration keys they fill.
// The LLM keys are resolved per provider by LLMKey.
var ConfigKeys = map[string]string{
	"zotero-api-key":           "library.api_key",
	"mail-password":            "mail.password",
	"semantic-scholar-api-key": "search.semantic_scholar_api_key",
	"openalex-email":           "search.openalex_email",
	"s3-access-key":            "history.s3_access_key",
	"s3-secret-key":            "history.s3_secret_key",
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "name", name, "error", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Defaults converts loaded secrets into configuration defaults keyed by
// ConfigKeys. Unrecognized files are ignored.
func Defaults(secrets map[string]string) map[string]string {
	out := make(map[string]string)
	for file, key := range ConfigKeys {
		if v, ok := secrets[file]; ok {
			out[key] = v
		}
	}
	return out
}

// LLMKey returns the API key file content for the named provider
// ("deepseek" reads deepseek-api-key).
func LLMKey(secrets map[string]string, provider string) string {
	return secrets[strings.ToLower(strings.TrimSpace(provider))+"-api-key"]
}
