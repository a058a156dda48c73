// Package monitor runs DAQ poll cycles.
//
// One cycle asks the control service for the run state and, only while the
// run is going, reads the rate histogram and decodes the configured
// channels. The state check comes first because the DAQ does not reset the
// rate histogram when a run stops, so a stopped DAQ would otherwise report
// stale rates.
//
// Monitor.Poll runs a single cycle. Monitor.Run repeats it on a ticker,
// applying configs received from a reload channel between cycles.
package monitor
