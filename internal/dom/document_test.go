package dom

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/jsinterop/internal/interop"
	"github.com/joeycumines/jsinterop/internal/jsrt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPage = `<!DOCTYPE html>
<html>
<head><title> Test page </title></head>
<body>
  <div id="outer" class="box">
    <p id="inner">hello <b>world</b></p>
    <input id="name" value="Grüße">
    <textarea id="notes">some notes</textarea>
  </div>
  <a id="plain" href="https://example.com/files/report.pdf?v=2">report</a>
</body>
</html>`

func newTestDocument(t *testing.T, loader jsrt.SourceLoader, opts ...Option) (*jsrt.Runtime, *Document) {
	t.Helper()
	var rtOpts []jsrt.Option
	if loader != nil {
		rtOpts = append(rtOpts, jsrt.WithLoader(loader))
	}
	rt, err := jsrt.NewRuntime(context.Background(), rtOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	doc, err := New(rt, opts...)
	require.NoError(t, err)
	return rt, doc
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func eval[T any](t *testing.T, rt *jsrt.Runtime, expr string) T {
	t.Helper()
	var out T
	require.NoError(t, rt.Eval(testContext(t), expr, &out))
	return out
}

func TestNew_DefaultPage(t *testing.T) {
	t.Parallel()
	rt, doc := newTestDocument(t, nil)

	s, err := doc.HTML()
	require.NoError(t, err)
	assert.Equal(t, "<!DOCTYPE html><html><head></head><body></body></html>", s)

	assert.Equal(t, "BODY", eval[string](t, rt, `document.body.tagName`))
	assert.Equal(t, "HTML", eval[string](t, rt, `document.documentElement.tagName`))
	assert.Equal(t, "complete", eval[string](t, rt, `document.readyState`))
	assert.True(t, eval[bool](t, rt, `window === self && window.document === document`))
}

func TestNew_WithHTML(t *testing.T) {
	t.Parallel()
	rt, doc := newTestDocument(t, nil, WithHTML(testPage))

	assert.Equal(t, "Test page", eval[string](t, rt, `document.title`))

	infos, err := doc.Find("#outer > *")
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "p", infos[0].Tag)
	assert.Equal(t, "inner", infos[0].ID)
	assert.Equal(t, "hello world", infos[0].Text)
	assert.Equal(t, "Grüße", infos[1].Attrs["value"])
}

func TestNew_PageScriptsDoNotRun(t *testing.T) {
	t.Parallel()
	rt, _ := newTestDocument(t, nil, WithHTML(`<html><body><script>window.ran = true</script></body></html>`))

	assert.Equal(t, "undefined", eval[string](t, rt, `typeof window.ran`))
}

func TestDocument_ElementReferenceArgument(t *testing.T) {
	t.Parallel()
	rt, _ := newTestDocument(t, jsrt.MapLoader{
		"probe.js": `exports.describe = (el) => el === null ? "null" : el.tagName + "#" + el.id;`,
	}, WithHTML(testPage))
	ctx := testContext(t)

	ref, err := rt.Import(ctx, "probe.js")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ref.Release(context.Background()) })

	var out string
	require.NoError(t, ref.Invoke(ctx, "describe", &out, interop.ElementByID("inner")))
	assert.Equal(t, "P#inner", out)

	el := interop.ElementByID("name")
	require.NoError(t, ref.Invoke(ctx, "describe", &out, &el))
	assert.Equal(t, "INPUT#name", out)

	require.NoError(t, ref.Invoke(ctx, "describe", &out, (*interop.ElementReference)(nil)))
	assert.Equal(t, "null", out)

	err = ref.Invoke(ctx, "describe", &out, interop.ElementByID("missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no element with id "missing"`)
}

func TestDocument_ActiveElement(t *testing.T) {
	t.Parallel()
	rt, doc := newTestDocument(t, nil, WithHTML(testPage))

	id, err := doc.ActiveElement()
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Equal(t, "BODY", eval[string](t, rt, `document.activeElement.tagName`))

	require.NoError(t, rt.Eval(testContext(t), `document.getElementById("name").focus()`, nil))
	id, err = doc.ActiveElement()
	require.NoError(t, err)
	assert.Equal(t, "name", id)

	// removing the focused element drops focus
	require.NoError(t, rt.Eval(testContext(t), `document.getElementById("outer").remove()`, nil))
	id, err = doc.ActiveElement()
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestDocument_Selection(t *testing.T) {
	t.Parallel()
	rt, doc := newTestDocument(t, nil, WithHTML(testPage))

	_, _, ok, err := doc.Selection("name")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, rt.Eval(testContext(t), `document.getElementById("name").select()`, nil))
	start, end, ok, err := doc.Selection("name")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, start)
	assert.Equal(t, 5, end, "selection counts characters, not bytes")

	require.NoError(t, rt.Eval(testContext(t), `document.getElementById("notes").select()`, nil))
	_, end, _, err = doc.Selection("notes")
	require.NoError(t, err)
	assert.Equal(t, 10, end)

	_, _, _, err = doc.Selection("missing")
	require.Error(t, err)
}

func TestDocument_ScrollHistory(t *testing.T) {
	t.Parallel()
	rt, doc := newTestDocument(t, nil, WithHTML(testPage))

	require.NoError(t, rt.Eval(testContext(t), `
		document.getElementById("inner").scrollIntoView();
		document.getElementById("outer").scrollIntoViewIfNeeded();
	`, nil))

	scrolls, err := doc.ScrollHistory()
	require.NoError(t, err)
	assert.Equal(t, []Scroll{{ID: "inner"}, {ID: "outer", IfNeeded: true}}, scrolls)
}

func TestDocument_DispatchEvent(t *testing.T) {
	t.Parallel()
	rt, doc := newTestDocument(t, nil, WithHTML(testPage))
	ctx := testContext(t)

	require.NoError(t, rt.LoadScript("listeners.js", `
		var seen = [];
		document.getElementById("outer").addEventListener("poke", (e) => seen.push("outer:" + e.target.id));
		window.addEventListener("poke", (e) => seen.push("window"));
		document.getElementById("inner").addEventListener("veto", (e) => e.preventDefault());
	`))

	ok, err := doc.DispatchEvent(ctx, "inner", "poke")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"outer:inner", "window"}, eval[[]string](t, rt, `seen`))

	ok, err = doc.DispatchEvent(ctx, "", "poke")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, eval[[]string](t, rt, `seen`), 3)

	ok, err = doc.DispatchEvent(ctx, "inner", "veto")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = doc.DispatchEvent(ctx, "missing", "poke")
	require.Error(t, err)
}

func TestDocument_Render(t *testing.T) {
	t.Parallel()
	rt, doc := newTestDocument(t, nil)

	require.NoError(t, rt.Eval(testContext(t), `
		const p = document.createElement("p");
		p.id = "added";
		p.textContent = "a < b";
		document.body.appendChild(p);
	`, nil))

	var b strings.Builder
	require.NoError(t, doc.Render(&b))
	assert.Contains(t, b.String(), `<p id="added">a &lt; b</p>`)
}
