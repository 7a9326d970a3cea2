// typedrop.go: interned, type-erased drop operations for retirements.
//
// spec.md 9 calls for "a retirement is a pair (byte-pointer, type-erased
// drop operation)" and suggests interning the operation per type to avoid
// allocating a fresh closure on every retirement. We intern a dropOp per
// concrete instantiation of strongDropFor[T]/weakDropFor[T] in a process-
// wide cache keyed on reflect.Type, so retiring a pointer only ever
// allocates the (ptr, dropOp) pair itself, never a new closure.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
package gossamer

import (
	"reflect"
	"sync"
	"unsafe"
)

// dropOp is a type-erased "how to drop this retirement" operation: spec.md
// 9's "pair (byte-pointer, type-erased drop operation)" with the pointer
// carried alongside in the retirement struct (see reclaim.go).
type dropOp func(ptr unsafe.Pointer)

var (
	strongDropCache sync.Map // map[reflect.Type]dropOp
	weakDropCache   sync.Map // map[reflect.Type]dropOp
)

func strongDropFor[T any]() dropOp {
	key := reflect.TypeFor[T]()
	if v, ok := strongDropCache.Load(key); ok {
		return v.(dropOp)
	}
	op := dropOp(func(ptr unsafe.Pointer) {
		finalizeStrongDrop((*block[T])(ptr))
	})
	actual, _ := strongDropCache.LoadOrStore(key, op)
	return actual.(dropOp)
}

func weakDropFor[T any]() dropOp {
	key := reflect.TypeFor[T]()
	if v, ok := weakDropCache.Load(key); ok {
		return v.(dropOp)
	}
	op := dropOp(func(ptr unsafe.Pointer) {
		weakRelease((*weakBlock[T])(ptr))
	})
	actual, _ := weakDropCache.LoadOrStore(key, op)
	return actual.(dropOp)
}
