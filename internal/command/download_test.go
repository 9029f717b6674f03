package command

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/joeycumines/jsinterop/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameFromURL(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{
		"https://example.com/files/report.pdf":   "report.pdf",
		"https://example.com/files/report.pdf?x": "report.pdf",
		"https://example.com/dir/":               "dir",
		"https://example.com":                    "download",
		"https://example.com/":                   "download",
		"blob:0f8c":                              "download",
		"://bad":                                 "download",
	} {
		assert.Equal(t, want, nameFromURL(in), in)
	}
}

func TestSafeName(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{
		"report.pdf":            "report.pdf",
		"../../etc/passwd":      "passwd",
		`..\..\windows\win.ini`: "win.ini",
		"/":                     "download",
		"..":                    "download",
		"":                      "download",
		"a/b/":                  "b",
	} {
		assert.Equal(t, want, safeName(in), in)
	}
}

func TestIsURL(t *testing.T) {
	t.Parallel()
	assert.True(t, isURL("https://example.com/a"))
	assert.True(t, isURL("http://127.0.0.1:8080/a"))
	assert.False(t, isURL("file:///etc/passwd"))
	assert.False(t, isURL("report.csv"))
	assert.False(t, isURL("-"))
	assert.False(t, isURL("https://"))
}

func downloadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.SetGlobalOption("loader.root", t.TempDir())
	cfg.SetGlobalOption("color", "never")
	cfg.SetGlobalOption("timeout", "20s")
	return cfg
}

func TestDownloadCommand_Stream(t *testing.T) {
	t.Parallel()
	src := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(src, []byte("a,b\n1,2\n"), 0o644))
	outDir := filepath.Join(t.TempDir(), "saved")

	r := NewRegistry()
	r.Register(NewDownloadCommand(downloadConfig(t)))
	var stdout, stderr bytes.Buffer
	require.NoError(t, r.Run([]string{"download", "--dir", outDir, src}, &stdout, &stderr))

	target := filepath.Join(outDir, "report.csv")
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(got))
	assert.Contains(t, stderr.String(), "saved "+target+" (8 bytes)")
	assert.Empty(t, stdout.String())
}

func TestDownloadCommand_StreamRenamedToStdout(t *testing.T) {
	t.Parallel()
	src := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(src, []byte{0, 1, 2, 0xff}, 0o644))

	cmd := NewDownloadCommand(downloadConfig(t))
	cmd.dir = "-"
	cmd.name = "renamed.bin"
	var stdout, stderr bytes.Buffer
	require.NoError(t, cmd.Execute([]string{src}, &stdout, &stderr))
	assert.Equal(t, []byte{0, 1, 2, 0xff}, stdout.Bytes())
	// the record of the save is logged, but no report line is printed
	assert.NotRegexp(t, `(?m)^saved `, stderr.String())
	assert.Contains(t, stderr.String(), `msg="download saved"`)
}

func TestDownloadCommand_URL(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files/report.txt":
			_, _ = w.Write([]byte("remote payload"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	outDir := t.TempDir()

	cmd := NewDownloadCommand(downloadConfig(t))
	cmd.dir = outDir
	var stdout, stderr bytes.Buffer
	require.NoError(t, cmd.Execute([]string{srv.URL + "/files/report.txt"}, &stdout, &stderr))
	got, err := os.ReadFile(filepath.Join(outDir, "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "remote payload", string(got))

	cmd = NewDownloadCommand(downloadConfig(t))
	cmd.dir = outDir
	err = cmd.Execute([]string{srv.URL + "/files/missing.txt"}, &stdout, &stderr)
	assert.ErrorContains(t, err, "404")
	_, statErr := os.Stat(filepath.Join(outDir, "missing.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownloadCommand_Errors(t *testing.T) {
	t.Parallel()
	var stdout, stderr bytes.Buffer

	cmd := NewDownloadCommand(downloadConfig(t))
	assert.EqualError(t, cmd.Execute(nil, &stdout, &stderr), "expected exactly one URL or file")
	assert.Contains(t, stderr.String(), "Usage: jsop download")

	cmd = NewDownloadCommand(downloadConfig(t))
	cmd.dir = t.TempDir()
	err := cmd.Execute([]string{filepath.Join(t.TempDir(), "absent.txt")}, &stdout, &stderr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
