// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/paperwatch/internal/history"
	"github.com/pdiddy/paperwatch/internal/secrets"
	"github.com/pdiddy/paperwatch/pkg/types"
)

const envPrefix = "PAPERWATCH"

// envAliases binds the plain variable names used by existing deployments
// (GitHub Actions secrets, .env files) next to the PAPERWATCH_ names.
var envAliases = map[string]string{
	"library.id":                      "ZOTERO_LIBRARY_ID",
	"library.api_key":                 "ZOTERO_API_KEY",
	"llm.deepseek_api_key":            "DEEPSEEK_API_KEY",
	"llm.openai_api_key":              "OPENAI_API_KEY",
	"search.semantic_scholar_api_key": "S2_API_KEY",
	"mail.host":                       "MAIL_HOST",
	"mail.user":                       "MAIL_USER",
	"mail.password":                   "MAIL_PASS",
	"mail.receiver":                   "MAIL_RECEIVER",
}

// configureViper sets defaults and environment lookups on v.
func configureViper(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, alias := range envAliases {
		_ = v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), alias)
	}

	v.SetDefault("library.type", string(types.LibraryUser))
	v.SetDefault("library.max_anchors", 20)
	v.SetDefault("library.abstract_chars", 400)
	v.SetDefault("library.timeout", 30*time.Second)

	v.SetDefault("search.window_days", 180)
	v.SetDefault("search.backends", []string{"semantic_scholar"})
	v.SetDefault("search.page_size", 100)
	v.SetDefault("search.max_pages", 5)
	v.SetDefault("search.request_delay", 1200*time.Millisecond)
	v.SetDefault("search.timeout", 30*time.Second)
	v.SetDefault("search.user_agent", "paperwatch/"+version)

	v.SetDefault("llm.provider", string(types.ProviderDeepSeek))
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", 2*time.Second)
	v.SetDefault("llm.concurrency", 1)
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("digest.min_score", 6)
	v.SetDefault("digest.max_items", 20)

	v.SetDefault("mail.port", 465)
	v.SetDefault("mail.from_name", "ResearchBot")

	v.SetDefault("history.backend", string(types.HistoryFile))
	v.SetDefault("history.s3_key", "sent_history.json")
	v.SetDefault("history.s3_region", "us-east-1")
	v.SetDefault("history.s3_use_ssl", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// loadRunConfig builds the immutable run configuration from v. Credentials
// not found in v fall back to the loaded secret files. Validation is left to
// the pipeline so dry runs can skip mail settings.
func loadRunConfig(v *viper.Viper, secretFiles map[string]string) types.RunConfig {
	cfg := types.RunConfig{
		Library: types.LibraryConfig{
			HTTPConfig:    httpConfig(v, "library"),
			LibraryID:     v.GetString("library.id"),
			Type:          types.LibraryType(strings.ToLower(v.GetString("library.type"))),
			APIKey:        v.GetString("library.api_key"),
			Folder:        v.GetString("library.folder"),
			MaxAnchors:    v.GetInt("library.max_anchors"),
			AbstractChars: v.GetInt("library.abstract_chars"),
		},
		Search: types.SearchConfig{
			HTTPConfig:            httpConfig(v, "search"),
			Keywords:              stringList(v, "search.keywords"),
			WindowDays:            v.GetInt("search.window_days"),
			Backends:              stringList(v, "search.backends"),
			PageSize:              v.GetInt("search.page_size"),
			MaxPages:              v.GetInt("search.max_pages"),
			RequestDelay:          v.GetDuration("search.request_delay"),
			SemanticScholarAPIKey: v.GetString("search.semantic_scholar_api_key"),
			OpenAlexEmail:         v.GetString("search.openalex_email"),
		},
		LLM: types.LLMConfig{
			Provider:    types.ProviderName(strings.ToLower(strings.TrimSpace(v.GetString("llm.provider")))),
			Model:       v.GetString("llm.model"),
			APIKey:      v.GetString("llm.api_key"),
			BaseURL:     v.GetString("llm.base_url"),
			MaxRetries:  v.GetInt("llm.max_retries"),
			RetryDelay:  v.GetDuration("llm.retry_delay"),
			Concurrency: v.GetInt("llm.concurrency"),
			Timeout:     v.GetDuration("llm.timeout"),
		},
		Digest: types.DigestConfig{
			MinScore: v.GetInt("digest.min_score"),
			MaxItems: v.GetInt("digest.max_items"),
		},
		Mail: types.MailConfig{
			Host:     v.GetString("mail.host"),
			Port:     v.GetInt("mail.port"),
			User:     v.GetString("mail.user"),
			Password: v.GetString("mail.password"),
			Receiver: v.GetString("mail.receiver"),
			FromName: v.GetString("mail.from_name"),
		},
		History: types.HistoryConfig{
			Backend:     types.HistoryBackend(strings.ToLower(v.GetString("history.backend"))),
			Path:        v.GetString("history.path"),
			S3Endpoint:  v.GetString("history.s3_endpoint"),
			S3Bucket:    v.GetString("history.s3_bucket"),
			S3Key:       v.GetString("history.s3_key"),
			S3AccessKey: v.GetString("history.s3_access_key"),
			S3SecretKey: v.GetString("history.s3_secret_key"),
			S3Region:    v.GetString("history.s3_region"),
			S3UseSSL:    v.GetBool("history.s3_use_ssl"),
		},
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v.GetString("llm." + string(cfg.LLM.Provider) + "_api_key")
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = secrets.LLMKey(secretFiles, string(cfg.LLM.Provider))
	}

	if cfg.History.Path == "" {
		switch cfg.History.Backend {
		case types.HistorySQLite:
			cfg.History.Path = history.DefaultSQLitePath
		case types.HistoryFile:
			cfg.History.Path = history.DefaultFilePath
		}
	}
	return cfg
}

func httpConfig(v *viper.Viper, section string) types.HTTPConfig {
	ua := v.GetString(section + ".user_agent")
	if ua == "" {
		ua = "paperwatch/" + version
	}
	return types.HTTPConfig{
		Timeout:   v.GetDuration(section + ".timeout"),
		UserAgent: ua,
	}
}

// stringList reads a list setting. A YAML list is taken as is; a string,
// as set through the environment, is split on commas so keywords may
// contain spaces.
func stringList(v *viper.Viper, key string) []string {
	var raw []string
	if s, ok := v.Get(key).(string); ok {
		raw = strings.Split(s, ",")
	} else {
		raw = v.GetStringSlice(key)
	}

	var out []string
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
