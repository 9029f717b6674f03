package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAndRead(t *testing.T, initial, key, value string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config")
	if initial != "" {
		require.NoError(t, os.WriteFile(p, []byte(initial), 0o600))
	}
	require.NoError(t, SetKeyInFile(p, key, value))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(b)
}

func TestSetKeyInFile(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		name, initial, key, value, want string
	}{
		{
			name: "new file",
			key:  "color", value: "never",
			want: "color never\n",
		},
		{
			name:    "replaces in place",
			initial: "# top\ncolor auto\ntimeout 5s\n",
			key:     "color", value: "always",
			want: "# top\ncolor always\ntimeout 5s\n",
		},
		{
			name:    "appends without sections",
			initial: "color auto",
			key:     "timeout", value: "1m",
			want: "color auto\ntimeout 1m\n",
		},
		{
			name:    "inserts before the first section",
			initial: "color auto\n\n[page]\noutput x.html\n",
			key:     "timeout", value: "1m",
			want: "color auto\n\ntimeout 1m\n[page]\noutput x.html\n",
		},
		{
			name:    "leaves section keys alone",
			initial: "[page]\ncolor never\n",
			key:     "color", value: "always",
			want: "color always\n[page]\ncolor never\n",
		},
		{
			name:    "bare key",
			initial: "log.file /tmp/x.log\n",
			key:     "log.file", value: "",
			want: "log.file\n",
		},
		{
			name:    "ignores commented keys",
			initial: "# color never\n",
			key:     "color", value: "auto",
			want: "# color never\ncolor auto\n",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, writeAndRead(t, tc.initial, tc.key, tc.value))
		})
	}
}

func TestSetKeyInFile_RoundTrip(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "nested", "config")
	require.NoError(t, SetKeyInFile(p, "download.dir", "/srv/downloads"))
	require.NoError(t, SetKeyInFile(p, "log.level", "debug"))

	c, err := LoadFromPath(p)
	require.NoError(t, err)
	assert.Empty(t, c.Warnings)
	assert.Equal(t, "/srv/downloads", c.Global["download.dir"])
	assert.Equal(t, "debug", c.Global["log.level"])
}

func TestSetKeyInFile_Rejects(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "config")
	assert.Error(t, SetKeyInFile(p, "", "x"))
	assert.Error(t, SetKeyInFile(p, "has space", "x"))
	assert.Error(t, SetKeyInFile(p, "[page]", "x"))
	assert.Error(t, SetKeyInFile(p, "color", "a\nb"))
	assert.NoFileExists(t, p)
}
