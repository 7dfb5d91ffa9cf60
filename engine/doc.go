// Package engine owns the WebAssembly runtime that hosts the SimLib guest.
//
// A Runtime wraps one wazero runtime plus the library modules loaded into
// it. There is no process-global runtime: callers create one with New and
// close it when done.
//
// # Library Loading
//
// The library is the guest-side equivalent of a classpath. It is built from
// a directory scan (*.wasm, in name order), an explicit list of
// module files, and in-memory sources. Each module is instantiated under its
// file stem, so a module importing "simcore" links against simcore.wasm.
// Modules are instantiated once every module they import is available;
// import cycles and imports nothing provides fail the load.
//
// # Host Modules
//
// Before any library module is instantiated the runtime registers:
//
//	mathlib                 f64 math (sin, cos, ..., atan2, pow, hypot)
//	console                 println(ptr, len) routed to the logger and Stdout
//	wasi_snapshot_preview1  WASI with args and the implementation-set env
//
// Additional hosts implement Host; every exported method becomes a function
// named after the method in lower kebab-case.
//
// # Memory
//
// Memory wraps a module's exported memory with bounds-checked accessors.
// View returns a slice aliasing guest memory, valid only until the next
// guest call.
package engine
