package config

import (
	"net/url"
	"os"
)

// APIKeySource represents where an API key comes from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus represents the status of an API key.
type KeyStatus struct {
	Name   string       `json:"name"`
	Source APIKeySource `json:"source"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"` // e.g., "sk-...abc"
}

// CheckAPIKeys returns the status of every provider credential.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	return []KeyStatus{
		checkKey("Anthropic API Key", cfg.Sentiment.AnthropicKey, "MARKETLENS_SENTIMENT_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"),
		checkKey("Apify API Token", cfg.News.Apify.Token, "MARKETLENS_NEWS_APIFY_TOKEN", "APIFY_API_TOKEN"),
		checkKey("SerpApi Key", cfg.News.SerpAPI.Key, "MARKETLENS_NEWS_SERPAPI_KEY", "SERPAPI_API_KEY"),
	}
}

// checkKey checks if a key is set and where it came from.
func checkKey(name, value string, envVars ...string) KeyStatus {
	status := KeyStatus{
		Name:   name,
		IsSet:  value != "",
		Source: KeySourceNone,
	}
	if value == "" {
		return status
	}

	status.Source = KeySourceConfig
	for _, env := range envVars {
		if os.Getenv(env) != "" {
			status.Source = KeySourceEnv
			break
		}
	}
	status.Masked = maskKey(value)
	return status
}

// maskKey masks an API key for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}

// Redacted returns a copy of cfg with every credential masked.
func (c Config) Redacted() Config {
	mask := func(v string) string {
		if v == "" {
			return ""
		}
		return maskKey(v)
	}
	c.Sentiment.AnthropicKey = mask(c.Sentiment.AnthropicKey)
	c.News.Apify.Token = mask(c.News.Apify.Token)
	c.News.SerpAPI.Key = mask(c.News.SerpAPI.Key)
	if c.Redis.URL != "" {
		c.Redis.URL = redactURL(c.Redis.URL)
	}
	if c.Storage.Driver != "sqlite" && c.Storage.Driver != "sqlite3" {
		c.Storage.DSN = redactURL(c.Storage.DSN)
	}
	return c
}

// redactURL hides the password of a connection URL.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
