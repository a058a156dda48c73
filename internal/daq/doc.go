// Package daq talks to the MIDAS DAQ control services.
//
// Client.State calls GetState on the DataAcquisitionControlServer service and
// reports whether the run is going. Client.ReadSpectrum calls SpecRead1D on
// the SpectrumService and returns the base64-decoded histogram bytes.
package daq
