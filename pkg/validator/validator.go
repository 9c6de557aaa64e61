package validator

import (
	"net/url"
	"strings"
)

// ValidateURL validates that the URL parses and, when an allow-list is
// configured, that its host falls inside it. An empty allow-list permits
// any http(s) host.
func ValidateURL(mediaURL string, allowedDomains []string) bool {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Host == "" {
		return false
	}

	if len(allowedDomains) == 0 {
		return true
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")

	for _, domain := range allowedDomains {
		cleanDomain := strings.ToLower(strings.TrimSpace(domain))
		if cleanDomain == "" {
			continue
		}
		if host == cleanDomain || strings.HasSuffix(host, "."+cleanDomain) {
			return true
		}
	}

	return false
}

// ValidateFormatID validates format ID
func ValidateFormatID(formatID string) bool {
	if len(formatID) == 0 || len(formatID) > 64 {
		return false
	}
	// Format specifiers may contain selector syntax but never shell metacharacters.
	return !strings.ContainsAny(formatID, " \t\n;&|$`\"'\\")
}

// SanitizeFilename removes dangerous characters from filename
func SanitizeFilename(filename string) string {
	dangerousChars := []string{"<", ">", ":", "\"", "/", "\\", "|", "?", "*", "\x00"}
	result := filename
	for _, char := range dangerousChars {
		result = strings.ReplaceAll(result, char, "_")
	}
	return strings.TrimSpace(result)
}

// TruncateFilename truncates filename to max length while preserving extension
// Uses rune-level truncation to properly handle UTF-8 multi-byte characters
func TruncateFilename(filename string, maxLen int) string {
	runes := []rune(filename)
	if len(runes) <= maxLen {
		return filename
	}

	lastDot := strings.LastIndex(filename, ".")
	if lastDot == -1 {
		return string(runes[:maxLen])
	}

	ext := filename[lastDot:]
	extRunes := []rune(ext)

	availableLen := maxLen - len(extRunes)
	if availableLen <= 0 {
		return string(runes[:maxLen])
	}

	baseName := string([]rune(filename[:lastDot])[:availableLen])
	return baseName + ext
}

// ValidatePassword enforces the minimum password policy.
func ValidatePassword(password string) bool {
	return len(password) >= 6
}

// ValidateUsername enforces the username policy.
func ValidateUsername(username string) bool {
	if len(username) < 3 || len(username) > 50 {
		return false
	}
	for _, r := range username {
		if !(r >= 'a' && r <= 'z') && !(r >= 'A' && r <= 'Z') &&
			!(r >= '0' && r <= '9') && r != '_' && r != '-' && r != '.' {
			return false
		}
	}
	return true
}
