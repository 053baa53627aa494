// SPDX-License-Identifier: EPL-2.0

// Package graph is the real-time signal graph of the engine.
//
// A graph is built once from a declarative Topology. New validates the node
// and edge table (ids, ports, formats, cycles, reachability of the sink),
// inserts a Converter wherever the hardware capture format differs from the
// node it feeds, orders the nodes topologically and preallocates every
// buffer. After that the shape never changes.
//
// The default topology is
//
//	player -> pitch -> eq -> reverb -> output:0
//	mic [-> converter] -> micmix -> output:1
//
// Control goroutines change effects through the setters, which clamp into
// each parameter's bounds and store into Params, a set of atomic slots with
// a version counter. Render, called on the device thread, re-reads the slots
// only when the version moved, so a change is heard from the next buffer on.
// Player commands travel the same way as a single atomic word.
//
// Render never allocates, locks or logs. A failed capture pull aborts the
// cycle and its status goes back to the device with the output untouched.
package graph
