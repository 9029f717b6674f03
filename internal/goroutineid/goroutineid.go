// Package goroutineid reads the current goroutine's id from the runtime
// stack header. It exists so a runtime can tell whether it is being called
// from its own event loop goroutine.
package goroutineid

import (
	"bytes"
	"runtime"
	"sync"
)

var stackBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 64)
		return &b
	},
}

var header = []byte("goroutine ")

// Get returns the id of the calling goroutine, or 0 if the stack header
// could not be parsed.
func Get() int64 {
	bp := stackBufPool.Get().(*[]byte)
	defer stackBufPool.Put(bp)
	buf := *bp
	n := runtime.Stack(buf, false)
	return parse(buf[:n])
}

// parse extracts the id from a header of the form "goroutine 123 [running]:".
// It does not allocate.
func parse(stack []byte) int64 {
	i := bytes.Index(stack, header)
	if i < 0 {
		return 0
	}
	var id int64
	for _, b := range stack[i+len(header):] {
		if b < '0' || b > '9' {
			break
		}
		id = id*10 + int64(b-'0')
	}
	return id
}
