// Package dds is a typed API over the rtps engine. Every wrapper owns one
// engine handle and deletes it on Close or, failing that, when collected.
// Topics, readers and writers are parameterized by the Go sample type, which
// is serialized as CDR; struct fields tagged `dds:"key"` form the key.
package dds
