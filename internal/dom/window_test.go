package dom

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type downloads struct {
	mu  sync.Mutex
	got []Download
}

func (d *downloads) handle(dl Download) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, dl)
}

func (d *downloads) all() []Download {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Download(nil), d.got...)
}

func TestBlob(t *testing.T) {
	t.Parallel()
	rt, _ := newTestDocument(t, nil)

	var got struct {
		Size int    `json:"size"`
		Type string `json:"type"`
		Text string `json:"text"`
		Len  int    `json:"len"`
	}
	require.NoError(t, rt.Eval(testContext(t), `(async () => {
		const bytes = new Uint8Array([120, 104, 101, 108, 108, 111, 121]);
		const inner = new Blob(["ab"]);
		const b = new Blob([inner, new DataView(bytes.buffer, 1, 5), "!", 7], {type: "Text/Plain"});
		return {size: b.size, type: b.type, text: await b.text(), len: (await b.arrayBuffer()).byteLength};
	})()`, &got))
	assert.Equal(t, 9, got.Size)
	assert.Equal(t, "text/plain", got.Type)
	assert.Equal(t, "abhello!7", got.Text)
	assert.Equal(t, 9, got.Len)
}

func TestBlob_Empty(t *testing.T) {
	t.Parallel()
	rt, _ := newTestDocument(t, nil)

	assert.Equal(t, []any{float64(0), ""}, eval[[]any](t, rt, `(() => { const b = new Blob(); return [b.size, b.type]; })()`))
}

func TestURL_ObjectURLs(t *testing.T) {
	t.Parallel()
	rt, _ := newTestDocument(t, nil)

	assert.True(t, eval[bool](t, rt, `(() => {
		const b = new Blob(["x"]);
		const a = URL.createObjectURL(b);
		const c = URL.createObjectURL(b);
		return a.startsWith("blob:jsop/") && a !== c;
	})()`))

	err := rt.Eval(testContext(t), `URL.createObjectURL("nope")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a Blob")
}

func TestClick_BlobDownload(t *testing.T) {
	t.Parallel()
	var dls downloads
	rt, doc := newTestDocument(t, nil, WithDownloadHandler(dls.handle))

	// the URL is revoked straight after the click, the data must survive
	require.NoError(t, rt.Eval(testContext(t), `(() => {
		const url = URL.createObjectURL(new Blob(["hello ", new Uint8Array([119, 111, 114, 108, 100])], {type: "text/plain"}));
		const a = document.createElement("a");
		a.href = url;
		a.download = "greeting.txt";
		document.body.appendChild(a);
		a.click();
		a.remove();
		URL.revokeObjectURL(url);
	})()`, nil))
	doc.Wait()

	got := dls.all()
	require.Len(t, got, 1)
	assert.Equal(t, "greeting.txt", got[0].FileName)
	assert.Equal(t, "text/plain", got[0].MIME)
	assert.Equal(t, []byte("hello world"), got[0].Data)
	assert.False(t, got[0].Navigate)
	assert.Contains(t, got[0].URL, "blob:jsop/")
}

func TestClick_URLDownload(t *testing.T) {
	t.Parallel()
	var dls downloads
	rt, doc := newTestDocument(t, nil, WithHTML(testPage), WithDownloadHandler(dls.handle))

	require.NoError(t, rt.Eval(testContext(t), `(() => {
		const a = document.getElementById("plain");
		a.click();
		a.setAttribute("download", "");
		a.click();
	})()`, nil))
	doc.Wait()

	got := dls.all()
	require.Len(t, got, 2)
	assert.Equal(t, Download{URL: "https://example.com/files/report.pdf?v=2", Navigate: true}, got[0])
	assert.Equal(t, Download{URL: "https://example.com/files/report.pdf?v=2", FileName: "report.pdf"}, got[1])
}

func TestClick_PreventedOrRevoked(t *testing.T) {
	t.Parallel()
	var dls downloads
	var buf bytes.Buffer
	rt, doc := newTestDocument(t, nil,
		WithHTML(testPage),
		WithDownloadHandler(dls.handle),
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	require.NoError(t, rt.Eval(testContext(t), `(() => {
		const a = document.getElementById("plain");
		a.addEventListener("click", (e) => e.preventDefault());
		a.click();

		const b = document.createElement("a");
		b.href = URL.createObjectURL(new Blob(["gone"]));
		b.download = "gone.txt";
		URL.revokeObjectURL(b.href);
		b.click();

		const c = document.createElement("a");
		c.click();
	})()`, nil))
	doc.Wait()

	assert.Empty(t, dls.all())
	assert.Contains(t, buf.String(), "revoked blob URL")
}

func TestClick_NoHandlerLogs(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	rt, _ := newTestDocument(t, nil, WithHTML(testPage), WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	require.NoError(t, rt.Eval(testContext(t), `document.getElementById("plain").click()`, nil))
	assert.Contains(t, buf.String(), "msg=download")
	assert.Contains(t, buf.String(), "report.pdf")
}

func TestAlert(t *testing.T) {
	t.Parallel()
	var (
		mu   sync.Mutex
		msgs []string
	)
	rt, _ := newTestDocument(t, nil, WithAlertHandler(func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		msgs = append(msgs, msg)
	}))

	require.NoError(t, rt.Eval(testContext(t), `alert("hi"); window.alert(42); alert()`, nil))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"hi", "42", ""}, msgs)
}

func TestAlert_DefaultLogs(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	rt, _ := newTestDocument(t, nil, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	require.NoError(t, rt.Eval(testContext(t), `alert("careful")`, nil))
	assert.Contains(t, buf.String(), "message=careful")
}
