// Package bridge exposes the SimLib guest library as Go operations.
//
// A Session owns one guest runtime. Open starts it, loads the library and
// resolves every entry point once, checking each export's wasm signature:
//
//	s := bridge.Open(ctx, bridge.Config{Config: engine.Config{LibraryDir: "lib"}})
//	defer s.Close(ctx)
//	if err := s.Err(); err != nil {
//		// every operation fails with runtime_unavailable
//	}
//	p, err := s.MakePattern(ctx, sim.CreepingLineRequest())
//
// Open never fails outright. When the runtime cannot start, Err reports why
// and each operation fails fast. Entry points that do not resolve are listed
// by Missing, and only the operations that need them fail, with
// symbol_missing.
//
// # Faults
//
// After each guest call the session checks the owning module's
// sim_exception_check export. A pending exception is described, logged,
// cleared and returned as a boundary_fault error; traps and calls into a
// closed module are reported the same way.
//
// A Session is not safe for concurrent use.
package bridge
