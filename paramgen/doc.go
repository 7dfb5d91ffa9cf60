// Package paramgen draws reproducible pattern inputs for parameter sweeps.
package paramgen
