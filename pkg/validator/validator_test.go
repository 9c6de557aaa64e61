package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		allowed []string
		want    bool
	}{
		{"plain https any domain", "https://example.com/watch?v=1", nil, true},
		{"plain http any domain", "http://example.com/v", nil, true},
		{"ftp scheme rejected", "ftp://example.com/v", nil, false},
		{"file scheme rejected", "file:///etc/passwd", nil, false},
		{"no host rejected", "https://", nil, false},
		{"allow-list exact match", "https://youtube.com/watch", []string{"youtube.com"}, true},
		{"allow-list www stripped", "https://www.youtube.com/watch", []string{"youtube.com"}, true},
		{"allow-list subdomain match", "https://music.youtube.com/watch", []string{"youtube.com"}, true},
		{"allow-list miss", "https://evil.com/watch", []string{"youtube.com"}, false},
		{"suffix is not a subdomain", "https://notyoutube.com/watch", []string{"youtube.com"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidateURL(tc.url, tc.allowed))
		})
	}
}

func TestValidateFormatID(t *testing.T) {
	assert.True(t, ValidateFormatID("137+140"))
	assert.True(t, ValidateFormatID("bestaudio[ext=m4a]"))
	assert.False(t, ValidateFormatID(""))
	assert.False(t, ValidateFormatID("137; rm -rf /"))
	assert.False(t, ValidateFormatID("137|cat"))
	assert.False(t, ValidateFormatID("$(whoami)"))

	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	assert.False(t, ValidateFormatID(string(long)))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "my_video", SanitizeFilename("my/video"))
	assert.Equal(t, "a_b_c_d", SanitizeFilename(`a<b>c:d`))
	assert.Equal(t, "clean name", SanitizeFilename("  clean name  "))
}

func TestTruncateFilename(t *testing.T) {
	assert.Equal(t, "short.mp4", TruncateFilename("short.mp4", 20))

	got := TruncateFilename("a-very-long-name-indeed.mp4", 10)
	assert.Equal(t, "a-very.mp4", got)

	// Multi-byte characters count as one.
	got = TruncateFilename("日本語のタイトルですとても長い.mp4", 8)
	assert.Equal(t, 8, len([]rune(got)))
}

func TestValidateUsername(t *testing.T) {
	assert.True(t, ValidateUsername("alice"))
	assert.True(t, ValidateUsername("a.b-c_9"))
	assert.False(t, ValidateUsername("ab"))
	assert.False(t, ValidateUsername("has space"))
	assert.False(t, ValidateUsername("semi;colon"))
}

func TestValidatePassword(t *testing.T) {
	assert.True(t, ValidatePassword("secret1"))
	assert.False(t, ValidatePassword("short"))
}
