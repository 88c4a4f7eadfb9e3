// Package counter holds the sample business facets used to exercise the
// upgrade flow: a counter whose increment changes between versions and a
// second value added by the upgrade.
package counter

import (
	"github.com/roach88/diamond/internal/abi"
	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
)

// Namespace is the counter's storage partition, separate from the
// diamond core's.
var Namespace = ir.Namespace("diamond.app.counter.storage")

var (
	keyX = []byte("x")
	keyY = []byte("y")
)

// Initial values written by the initializers.
const (
	InitialX uint64 = 100
	InitialY uint64 = 200
)

// NewFacet returns CounterFacet: getX() and changeX() adding 1.
func NewFacet() *engine.FunctionTable {
	return engine.NewFunctionTable("counter", "1").
		Handle("getX()", getter(keyX)).
		Handle("changeX()", adder(keyX, 1))
}

// NewFacetV2 returns CounterFacetV2: changeX() adds 10 and getY() is new.
func NewFacetV2() *engine.FunctionTable {
	return engine.NewFunctionTable("counter", "2").
		Handle("getX()", getter(keyX)).
		Handle("changeX()", adder(keyX, 10)).
		Handle("getY()", getter(keyY))
}

// NewInit returns CounterInit: init() sets x to 100.
func NewInit() *engine.FunctionTable {
	return engine.NewFunctionTable("counter.init", "1").
		Handle("init()", setter(keyX, InitialX))
}

// NewInitV2 returns CounterInitV2: init2() sets y to 200.
func NewInitV2() *engine.FunctionTable {
	return engine.NewFunctionTable("counter.init", "2").
		Handle("init2()", setter(keyY, InitialY))
}

func getter(key []byte) engine.Handler {
	return func(f *engine.Frame) ([]byte, error) {
		v, err := f.Storage(Namespace).LoadUint64(key)
		if err != nil {
			return nil, err
		}
		return abi.EncodeValues(v)
	}
}

func adder(key []byte, delta uint64) engine.Handler {
	return func(f *engine.Frame) ([]byte, error) {
		s := f.Storage(Namespace)
		v, err := s.LoadUint64(key)
		if err != nil {
			return nil, err
		}
		if v+delta < v {
			return nil, engine.Revertf("%s overflows", key)
		}
		if err := s.StoreUint64(key, v+delta); err != nil {
			return nil, err
		}
		return abi.EncodeValues()
	}
}

func setter(key []byte, v uint64) engine.Handler {
	return func(f *engine.Frame) ([]byte, error) {
		if err := f.Storage(Namespace).StoreUint64(key, v); err != nil {
			return nil, err
		}
		return abi.EncodeValues()
	}
}
