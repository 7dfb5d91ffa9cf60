// Package batch runs seeded parameter sweeps of pattern construction over a
// bounded pool of facades, one guest session per worker.
package batch
