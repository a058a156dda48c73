// Package report renders monitor snapshots on an io.Writer.
//
// Text is the console view: a blue "ISS DAQ Rates" title with the local
// time, a green GOING or red STOPPED banner, then one "<label> (ch NNN):
// <value>" line per channel with the value in red above the threshold and
// green otherwise. Colors come from fatih/color and can be forced on or off.
//
// Prometheus writes the same data in the text exposition format using the
// prometheus/common expfmt encoder, either to a writer or by atomically
// replacing a file for the node_exporter textfile collector.
package report
