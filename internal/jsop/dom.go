package jsop

import (
	"context"

	"github.com/joeycumines/jsinterop/internal/interop"
)

// ScrollIntoView scrolls the element with id into view. It reports false if
// there is no such element.
func (b *Bridge) ScrollIntoView(ctx context.Context, id string) (bool, error) {
	return call[bool](ctx, b, OpScrollIntoView, id)
}

// FocusInput focuses an input and selects its text.
func (b *Bridge) FocusInput(ctx context.Context, el interop.ElementReference) error {
	return b.callVoid(ctx, OpFocusInput, el)
}

// Focus focuses el.
func (b *Bridge) Focus(ctx context.Context, el interop.ElementReference) error {
	return b.callVoid(ctx, OpFocus, el)
}

// ComputedStyle returns the computed value of a style property, named the
// way scripts spell it (e.g. "backgroundColor").
func (b *Bridge) ComputedStyle(ctx context.Context, el interop.ElementReference, name string) (string, error) {
	return call[string](ctx, b, OpComputedStyle, el, name)
}

// SetStyle sets one inline style property. An empty value removes it.
func (b *Bridge) SetStyle(ctx context.Context, el interop.ElementReference, name, value string) error {
	return b.callVoid(ctx, OpSetStyle, el, name, value)
}

// AddStyle appends a style element holding cssText to the document head.
// There is no dedup.
func (b *Bridge) AddStyle(ctx context.Context, cssText string) error {
	return b.callVoid(ctx, OpAddStyle, cssText)
}
