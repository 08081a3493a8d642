// Package dynamo provides the shared primitives of the rigid-body simulation.
//
// The package defines the identifiers and value types that cross the
// boundary between callers and the simulation worker:
//
//   - [BodyID], [ColliderID]: externally assigned, stable identifiers
//   - [Vec]: 2D vector (positions, velocities, forces, impulses)
//   - [BodyType], [Shape]: creation parameters
//   - [Snapshot]: immutable, frame-tagged copy of all body state
//
// # Example
//
//	snap := eng.ReadState()
//	for _, id := range snap.IDs() {
//	    b, _ := snap.Body(id)
//	    fmt.Println(id, b.Position, b.Rotation)
//	}
//
// # Thread Safety
//
// A published Snapshot is never written again, so any number of goroutines
// may read it concurrently. Callers that want to modify one must [Snapshot.Clone] it.
package dynamo
