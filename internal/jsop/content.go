package jsop

import (
	"embed"
	"io/fs"

	"github.com/joeycumines/jsinterop/internal/jsrt"
)

// ContentPrefix is the locator prefix the built-in module is served under.
const ContentPrefix = "./_content/jsop/"

// Locator is the default locator of the built-in module.
const Locator = ContentPrefix + "jsop.js"

//go:embed content/jsop.js
var content embed.FS

// Content returns the static files of the built-in module, rooted so that
// jsop.js is at the top.
func Content() fs.FS {
	sub, err := fs.Sub(content, "content")
	if err != nil {
		panic(err)
	}
	return sub
}

// Mount serves Content under ContentPrefix on r.
func Mount(r *jsrt.Router) {
	r.Mount(ContentPrefix, jsrt.FSLoader{FS: Content()})
}
