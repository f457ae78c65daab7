// Package internaldefs holds the metric definitions shared by the export
// bridges: stable metric names, help strings and the histogram bucket
// layout. Both exporters read from here so their output stays aligned.
//
// This package must not import the engine's exporter packages or perform
// I/O.
package internaldefs
