// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidConfig is wrapped by every error returned from RunConfig.Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paperwatch/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// LibraryType selects between a personal and a group Zotero library.
type LibraryType string

const (
	LibraryUser  LibraryType = "user"
	LibraryGroup LibraryType = "group"
)

// LibraryConfig holds settings for the anchor context loader.
type LibraryConfig struct {
	HTTPConfig `yaml:",inline"`

	// LibraryID is the numeric Zotero user or group ID.
	LibraryID string `json:"id" yaml:"id"`

	// Type is "user" (default) or "group".
	Type LibraryType `json:"type" yaml:"type"`

	// APIKey authenticates against the Zotero Web API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Folder is the anchor collection name, matched case-insensitively.
	Folder string `json:"folder" yaml:"folder"`

	// MaxAnchors caps the number of anchor papers sent to the model (default 20).
	MaxAnchors int `json:"max_anchors" yaml:"max_anchors"`

	// AbstractChars truncates each anchor abstract to save tokens (default 400).
	AbstractChars int `json:"abstract_chars" yaml:"abstract_chars"`
}

// SearchConfig holds settings for the candidate fetcher.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// Keywords are queried one at a time against every enabled backend.
	Keywords []string `json:"keywords" yaml:"keywords"`

	// WindowDays is the recency window: only papers published within this
	// many days of the run are candidates (default 180).
	WindowDays int `json:"window_days" yaml:"window_days"`

	// Backends lists the enabled backends by name (default semantic_scholar).
	Backends []string `json:"backends" yaml:"backends"`

	// PageSize is the number of results requested per page (default 100).
	PageSize int `json:"page_size" yaml:"page_size"`

	// MaxPages is the pagination safety cap per keyword and backend (default 5).
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// RequestDelay is the pause between consecutive API calls (default 1.2s).
	RequestDelay time.Duration `json:"request_delay" yaml:"request_delay"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`

	// OpenAlexEmail is sent as the mailto parameter for polite pool access.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty"`
}

// Window returns the recency window as a duration.
func (c SearchConfig) Window() time.Duration {
	return time.Duration(c.WindowDays) * 24 * time.Hour
}

// ProviderName identifies a language-model provider.
type ProviderName string

const (
	ProviderDeepSeek ProviderName = "deepseek"
	ProviderOpenAI   ProviderName = "openai"
)

// LLMConfig holds settings for the relevance scorer.
type LLMConfig struct {
	// Provider selects the chat completions endpoint: deepseek or openai.
	Provider ProviderName `json:"provider" yaml:"provider"`

	// Model overrides the provider's default model.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// APIKey is the bearer token for the provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint for compatible gateways.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RetryDelay is the first backoff between retries; it doubles per
	// attempt (default 2s).
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay"`

	// Concurrency bounds parallel scoring calls (default 1, sequential).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// Timeout is the per-call HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DigestConfig holds selection settings for the emailed digest.
type DigestConfig struct {
	// MinScore is the inclusive relevance threshold (0-10, default 6).
	MinScore int `json:"min_score" yaml:"min_score"`

	// MaxItems caps the number of papers per digest (default 20).
	MaxItems int `json:"max_items" yaml:"max_items"`
}

// MailConfig holds SMTP delivery settings.
type MailConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Receiver string `json:"receiver" yaml:"receiver"`
	FromName string `json:"from_name" yaml:"from_name"`
}

// HistoryBackend selects where sent-paper history is persisted.
type HistoryBackend string

const (
	HistoryFile   HistoryBackend = "file"
	HistorySQLite HistoryBackend = "sqlite"
	HistoryS3     HistoryBackend = "s3"
)

// HistoryConfig holds settings for the history store.
type HistoryConfig struct {
	Backend HistoryBackend `json:"backend" yaml:"backend"`

	// Path is the JSON file (file backend) or database file (sqlite backend).
	Path string `json:"path" yaml:"path"`

	S3Endpoint  string `json:"s3_endpoint,omitempty" yaml:"s3_endpoint,omitempty"`
	S3Bucket    string `json:"s3_bucket,omitempty" yaml:"s3_bucket,omitempty"`
	S3Key       string `json:"s3_key,omitempty" yaml:"s3_key,omitempty"`
	S3AccessKey string `json:"s3_access_key,omitempty" yaml:"s3_access_key,omitempty"`
	S3SecretKey string `json:"s3_secret_key,omitempty" yaml:"s3_secret_key,omitempty"`
	S3Region    string `json:"s3_region,omitempty" yaml:"s3_region,omitempty"`
	S3UseSSL    bool   `json:"s3_use_ssl" yaml:"s3_use_ssl"`
}

// RunConfig groups all stage configurations for one run. It is built once
// at process start and passed by value to every component.
type RunConfig struct {
	Library LibraryConfig `json:"library" yaml:"library"`
	Search  SearchConfig  `json:"search" yaml:"search"`
	LLM     LLMConfig     `json:"llm" yaml:"llm"`
	Digest  DigestConfig  `json:"digest" yaml:"digest"`
	Mail    MailConfig    `json:"mail" yaml:"mail"`
	History HistoryConfig `json:"history" yaml:"history"`
}

// Validate reports every missing or out-of-range setting at once. When
// sending is false the mail settings are not required (dry runs).
func (c RunConfig) Validate(sending bool) error {
	var problems []string
	missing := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			problems = append(problems, name+" is required")
		}
	}

	missing("library.id", c.Library.LibraryID)
	missing("library.api_key", c.Library.APIKey)
	missing("library.folder", c.Library.Folder)
	if c.Library.Type != LibraryUser && c.Library.Type != LibraryGroup {
		problems = append(problems, fmt.Sprintf("library.type %q must be user or group", c.Library.Type))
	}

	if len(c.Search.Keywords) == 0 {
		problems = append(problems, "search.keywords must list at least one keyword")
	}
	if c.Search.WindowDays <= 0 {
		problems = append(problems, "search.window_days must be positive")
	}

	switch c.LLM.Provider {
	case ProviderDeepSeek, ProviderOpenAI:
	default:
		problems = append(problems, fmt.Sprintf("llm.provider %q is not supported (deepseek, openai)", c.LLM.Provider))
	}
	missing("llm.api_key", c.LLM.APIKey)

	if c.Digest.MinScore < 0 || c.Digest.MinScore > 10 {
		problems = append(problems, fmt.Sprintf("digest.min_score %d out of range [0,10]", c.Digest.MinScore))
	}

	if sending {
		missing("mail.host", c.Mail.Host)
		missing("mail.user", c.Mail.User)
		missing("mail.password", c.Mail.Password)
		missing("mail.receiver", c.Mail.Receiver)
	}

	switch c.History.Backend {
	case HistoryFile, HistorySQLite:
	case HistoryS3:
		missing("history.s3_endpoint", c.History.S3Endpoint)
		missing("history.s3_bucket", c.History.S3Bucket)
	default:
		problems = append(problems, fmt.Sprintf("history.backend %q is not supported (file, sqlite, s3)", c.History.Backend))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
