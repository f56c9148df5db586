package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "codectx"

	// ItemOpenAIKey is the keychain item for the OpenAI API key
	ItemOpenAIKey = "openai-api-key"

	// ItemGeminiKey is the keychain item for the Gemini API key
	ItemGeminiKey = "gemini-api-key"

	// ItemGitHubToken is the keychain item for the GitHub token
	ItemGitHubToken = "github-token"
)

// KeyringManager handles secure credential storage in OS keychain
type KeyringManager struct {
	logger *slog.Logger
}

// NewKeyringManager creates a new keyring manager
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		logger: slog.Default().With("component", "keyring"),
	}
}

// Save stores a secret securely in the OS keychain
// This uses OS-level encryption:
// - macOS: Keychain Access.app → "codectx" → item
// - Windows: Credential Manager → "codectx"
// - Linux: Secret Service (requires libsecret)
func (km *KeyringManager) Save(item, value string) error {
	if value == "" {
		return fmt.Errorf("value cannot be empty")
	}

	err := keyring.Set(KeyringService, item, value)
	if err != nil {
		km.logger.Error("failed to save secret to keychain", "item", item, "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}

	km.logger.Info("secret saved to keychain", "service", KeyringService, "item", item)
	return nil
}

// Get retrieves a secret from the OS keychain
func (km *KeyringManager) Get(item string) (string, error) {
	value, err := keyring.Get(KeyringService, item)
	if err == keyring.ErrNotFound {
		// Not an error - just not set yet
		return "", nil
	}
	if err != nil {
		km.logger.Error("failed to get secret from keychain", "item", item, "error", err)
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}

	km.logger.Debug("secret retrieved from keychain", "item", item)
	return value, nil
}

// Delete removes a secret from the OS keychain
func (km *KeyringManager) Delete(item string) error {
	err := keyring.Delete(KeyringService, item)
	if err == keyring.ErrNotFound {
		// Already deleted, not an error
		return nil
	}
	if err != nil {
		km.logger.Error("failed to delete secret from keychain", "item", item, "error", err)
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}

	km.logger.Info("secret deleted from keychain", "item", item)
	return nil
}

// IsAvailable checks if OS keychain is available
// Returns false on headless systems (CI/CD) where keychain isn't available
func (km *KeyringManager) IsAvailable() bool {
	// Try to access keyring with a test operation
	_, err := keyring.Get(KeyringService, "test-availability")

	// If error is "not found", keychain is available
	// If error is something else, keychain may not be available
	if err == keyring.ErrNotFound {
		return true
	}
	if err != nil {
		km.logger.Debug("keychain not available", "error", err)
		return false
	}

	return true
}

// KeySourceInfo returns information about where a credential is stored
type KeySourceInfo struct {
	Source      string // "keychain", "config", "env", "env_file", "none"
	Secure      bool   // true if stored securely (keychain or env var in CI/CD)
	Recommended string // recommendation if not optimal
}

// GetKeySource determines where a credential is coming from.
// envVar is the environment variable to check, configValue the value
// currently held in the loaded config.
func (km *KeyringManager) GetKeySource(item, envVar, configValue string) KeySourceInfo {
	// Check environment variable first (highest precedence)
	if os.Getenv(envVar) != "" {
		return KeySourceInfo{
			Source:      "env",
			Secure:      true, // Acceptable for CI/CD
			Recommended: "Using environment variable (good for CI/CD)",
		}
	}

	// Check keychain
	keychainValue, _ := km.Get(item)
	if keychainValue != "" {
		return KeySourceInfo{
			Source:      "keychain",
			Secure:      true,
			Recommended: "Stored securely in OS keychain",
		}
	}

	// Check config file
	if configValue != "" {
		return KeySourceInfo{
			Source:      "config",
			Secure:      false,
			Recommended: "Plaintext storage detected. Run: cctx config set-key --use-keychain",
		}
	}

	// Check .env file
	if _, err := os.Stat(".env"); err == nil {
		// .env file exists, likely contains the credential
		return KeySourceInfo{
			Source:      "env_file",
			Secure:      false,
			Recommended: "Using .env file (OK for CI/CD, consider keychain for local dev)",
		}
	}

	return KeySourceInfo{
		Source:      "none",
		Secure:      false,
		Recommended: "No credential configured. Run: cctx config set-key",
	}
}

// MaskAPIKey masks an API key for display
// Shows first 7 chars and last 4 chars: "sk-proj...abc123"
func MaskAPIKey(apiKey string) string {
	if apiKey == "" {
		return "(not set)"
	}
	if len(apiKey) < 12 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", apiKey[:7], apiKey[len(apiKey)-4:])
}
