// Package viz draws a running scene in the terminal.
//
// [Model] is a Bubble Tea program that follows a snapshot publisher. It
// projects particles through the scene's first camera onto a braille
// [Canvas], colors them by their owner's surface, outlines rigid bodies,
// and keeps a short history of the particle centroid height. It reads
// frames only and never blocks the stepping goroutine.
//
// [Picker] is the scenario menu shown when no scenario is named.
//
// # Key Bindings
//
//	Space   - Freeze/resume the view
//	Q       - Stop the run and quit
//	Arrows  - Orbit the camera
//	+/-     - Zoom
//	R       - Start/stop recording
//	T       - Cycle color themes
//	?       - Show help overlay
package viz
