// Package config loads and watches the daqrates configuration file.
//
// Top-level types:
//   - Config{DAQ, Spectrum, Threshold, Interval, Output, LogLevel, Groups}
//   - DAQConfig: base_url, control_service, spectrum_service, timeout
//   - SpectrumConfig: name, base, range of the SpecRead1D request
//   - OutputConfig: format (text|prometheus), color (auto|always|never),
//     file (prometheus textfile target)
//   - Group / Channel: the channel mapping table (label → histogram index)
//
// Load(path) applies defaults, parses the YAML file and validates it. An
// empty path returns the defaults alone, which reproduce the ISS DAQ setup
// (issdaqpc:8015, Rate spectrum, threshold 10000, Recoil and Stub channels).
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It watches the parent directory and
// filters events by file name, so editors that save by renaming a temp file
// over the config (rename→create) are still seen.
package config
