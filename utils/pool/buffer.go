package pool

import (
	"bytes"
	"sync"
)

// maxPooledSize 超过该容量的缓冲区不放回池中，避免长期占用大块内存
const maxPooledSize = 4 * 1024 * 1024

// initialSize 新缓冲区的初始容量（256KB）
const initialSize = 256 * 1024

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, initialSize))
	},
}

// GetBuffer 从池中取出已清空的缓冲区
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer 归还缓冲区，调用后不得再使用 buf 或其 Bytes()
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledSize {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}
