// Package viz draws a running simulation in the terminal.
//
// [Model] is a Bubble Tea view that steps an engine through a scenario and
// renders the latest published snapshot on a braille [Canvas], next to an
// energy plot and the engine counters. [App] puts a preset menu in front of it.
//
// # Key Bindings
//
//	Space - Pause/Resume stepping
//	I     - Kick every body upwards
//	G     - Flip gravity
//	R     - Toggle GIF recording
//	T     - Cycle color themes
//	?     - Show help overlay
//	Q     - Quit; the engine is shut down
package viz
