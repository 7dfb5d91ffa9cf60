// Package simguest embeds the reference SimLib guest used by tests and the
// demo. It implements every entry point of the guest contract with
// simplified computations; it is not the production library.
//
// simlib.wat is the source of the embedded binary. Regenerate simlib.wasm
// with go generate after editing it.
package simguest

//go:generate wat2wasm simlib.wat -o simlib.wasm

import (
	_ "embed"

	"github.com/wippyai/simhook/engine"
)

// ModuleName is the instance name the guest is loaded under.
const ModuleName = "simlib"

// Wasm is the compiled guest module.
//
//go:embed simlib.wasm
var Wasm []byte

// Source returns the guest as an in-memory library module.
func Source() engine.Source {
	return engine.Source{Name: ModuleName, Data: Wasm}
}
