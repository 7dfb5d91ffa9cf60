// Package marshal moves values across the guest boundary.
//
// Guest objects live in the guest's linear memory behind an 8-byte header
// ([len u32][kind u32]) and are addressed by a Ref. A Heap allocates them
// through the guest's sim_new_* exports, reads them back into freshly
// allocated Go slices and releases them with sim_release. Element arrays are
// moved with a single byte copy when the host is little-endian and decoded
// element by element otherwise.
//
// An Envelope is built for one call: it collects the argument stack,
// allocating guest strings, arrays, string lists and matrices as needed, and
// releases everything it acquired in reverse order:
//
//	env := heap.NewEnvelope(ctx, 2).Float64s(thresholds).Matrix(lobs)
//	defer env.Release(ctx)
//	if err := env.Err(); err != nil {
//		return err
//	}
//	stack := env.Stack(1)
//	err := fn.CallWithStack(ctx, stack)
//
// Refs never leave this package and the bridge.
package marshal
