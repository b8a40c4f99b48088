// Package validation checks values that reach the filesystem or another
// process: project paths from the configuration, the sass executable and
// the URL handed to the system browser.
package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"unicode"
)

// shellChars are rejected anywhere a value may end up on a command line.
var shellChars = []string{";", "&", "|", "`", "$", "(", ")", "<", ">", "\"", "'"}

// ValidateURL validates URLs for browser auto-open functionality.
// Only absolute http and https URLs without credentials pass.
func ValidateURL(rawURL string) error {
	if err := checkText(rawURL); err != nil {
		return fmt.Errorf("URL %w", err)
	}
	if strings.ContainsAny(rawURL, " \\") {
		return fmt.Errorf("URL contains whitespace or backslash")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	// Only allow http/https schemes to prevent protocol handlers
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}
	if parsed.User != nil {
		return fmt.Errorf("URL must not carry credentials")
	}

	return nil
}

// ValidatePath checks a directory named relative to the project root.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	if err := checkText(path); err != nil {
		return fmt.Errorf("path %w", err)
	}

	cleanPath := filepath.Clean(path)
	if filepath.IsAbs(cleanPath) || strings.HasPrefix(filepath.ToSlash(path), "/") {
		return fmt.Errorf("path should be relative: %s", path)
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	return nil
}

// ValidateExecutable checks an executable name or path before it is started.
// Absolute paths are allowed.
func ValidateExecutable(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("executable cannot be empty")
	}
	if err := checkText(name); err != nil {
		return fmt.Errorf("executable %w", err)
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("executable must not start with '-': %s", name)
	}
	return nil
}

func checkText(s string) error {
	for _, char := range shellChars {
		if strings.Contains(s, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return fmt.Errorf("contains control character %U", r)
		}
	}
	return nil
}
