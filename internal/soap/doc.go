// Package soap is a minimal SOAP 1.1 client for the MIDAS DAQ web services.
//
// Envelope builds the fixed request skeleton with the method, the urn
// namespace and a caller-supplied parameter fragment substituted verbatim.
// Client.Call POSTs it as text/xml and returns the raw reply. Texts extracts
// the character data of every element with a given local name, decoding
// non-UTF-8 replies through golang.org/x/net/html/charset.
package soap
