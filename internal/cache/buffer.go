// Package cache provides the owned byte buffers a container keeps for its
// load command, symbol table and string table regions.
package cache

import (
	"errors"
	"fmt"
)

// ErrTooLarge is returned by Allocate when a request exceeds the configured limit.
var ErrTooLarge = errors.New("allocation exceeds limit")

// A Buffer is an exclusively owned byte slice. Every Set, Release or Take
// bumps its generation, so borrowers can detect that what they hold is gone.
//
// The zero value is an empty buffer.
type Buffer struct {
	data []byte
	gen  uint64
}

// Bytes returns the owned bytes without copying. The slice must not be kept
// past the next generation change.
func (b *Buffer) Bytes() []byte { return b.data }

// Present reports whether the buffer currently holds data.
func (b *Buffer) Present() bool { return b.data != nil }

// Len returns the number of owned bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Generation returns the current generation.
func (b *Buffer) Generation() uint64 { return b.gen }

// Set releases whatever the buffer holds and takes ownership of data.
// A nil data is the same as Release.
func (b *Buffer) Set(data []byte) {
	b.Release()
	b.data = data
}

// Release drops the owned bytes. It reports whether anything was held.
func (b *Buffer) Release() bool {
	held := b.data != nil
	b.data = nil
	b.gen++
	return held
}

// Take moves src's bytes into b, releasing b's previous bytes first.
// src is left empty.
func (b *Buffer) Take(src *Buffer) {
	if b == src {
		return
	}
	data := src.data
	src.data = nil
	src.gen++
	b.Set(data)
}

// Allocate returns a zeroed slice of n bytes, refusing requests above limit.
// A limit of zero means no limit.
func Allocate(n, limit uint64) (data []byte, err error) {
	if limit != 0 && n > limit {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, n, limit)
	}
	if uint64(int(n)) != n || int(n) < 0 {
		return nil, fmt.Errorf("%w: %d bytes does not fit in int", ErrTooLarge, n)
	}
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("%w: %v", ErrTooLarge, r)
		}
	}()
	return make([]byte, n), nil
}
