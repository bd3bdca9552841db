// Package gis defines the adapter contract for the external GIS engine and
// its GRASS implementation. The pipeline only ever touches the engine
// through this interface: import a file as a named layer, compute a named
// operation over named layers, export a layer to a file.
package gis

import (
	"context"
	"errors"
)

// ErrEngineUnavailable reports that the GIS engine executable could not be
// found or failed its health check.
var ErrEngineUnavailable = errors.New("gis engine unavailable")

// Params are the named parameters of a single engine operation, e.g.
// resampling method or atmospheric-correction settings keyed by band.
type Params map[string]string

// Engine abstracts the external GIS toolkit.
type Engine interface {
	// Import registers the file at path as a named layer in the workspace.
	Import(ctx context.Context, path, layer string, p Params) error

	// Compute runs the named operation over input layers, producing the
	// output layer.
	Compute(ctx context.Context, op string, inputs []string, output string, p Params) error

	// Export writes a layer to path in the given format.
	Export(ctx context.Context, layer, path, format string) error

	// Remove deletes layers from the workspace (per-scene cleanup).
	Remove(ctx context.Context, layers ...string) error

	// Check verifies the engine is invocable. Used by doctor.
	Check(ctx context.Context) error
}
