package jsop

// Op names a function exported by the built-in script module. The set is
// closed: every Bridge method maps to exactly one Op, and the module exports
// a function for each.
type Op string

const (
	OpLog                        Op = "log"
	OpAlert                      Op = "alert"
	OpTriggerClick               Op = "triggerClick"
	OpAddElementEventListener    Op = "addElementEventListener"
	OpRemoveElementEventListener Op = "removeElementEventListener"
	OpAddWindowEventListener     Op = "addWindowEventListener"
	OpRemoveWindowEventListener  Op = "removeWindowEventListener"
	OpDownloadFromURL            Op = "downloadFromURL"
	OpDownloadFromStream         Op = "downloadFromStream"
	OpIsScriptIncluded           Op = "isScriptIncluded"
	OpAddScript                  Op = "addScript"
	OpIsCSSIncluded              Op = "isCSSIncluded"
	OpAddCSS                     Op = "addCSS"
	OpAddStyle                   Op = "addStyle"
	OpScrollIntoView             Op = "scrollIntoView"
	OpFocusInput                 Op = "focusInput"
	OpFocus                      Op = "focus"
	OpComputedStyle              Op = "computedStyle"
	OpSetStyle                   Op = "setStyle"
)

var allOps = []Op{
	OpLog,
	OpAlert,
	OpTriggerClick,
	OpAddElementEventListener,
	OpRemoveElementEventListener,
	OpAddWindowEventListener,
	OpRemoveWindowEventListener,
	OpDownloadFromURL,
	OpDownloadFromStream,
	OpIsScriptIncluded,
	OpAddScript,
	OpIsCSSIncluded,
	OpAddCSS,
	OpAddStyle,
	OpScrollIntoView,
	OpFocusInput,
	OpFocus,
	OpComputedStyle,
	OpSetStyle,
}

// Ops returns every operation, in declaration order.
func Ops() []Op {
	return append([]Op(nil), allOps...)
}

// Valid reports whether o is one of the declared operations.
func (o Op) Valid() bool {
	for _, op := range allOps {
		if op == o {
			return true
		}
	}
	return false
}

// Mutating reports whether o changes the document head, which is what the
// inclusion dedup protects.
func (o Op) Mutating() bool {
	switch o {
	case OpAddScript, OpAddCSS, OpAddStyle:
		return true
	}
	return false
}

func (o Op) String() string { return string(o) }
