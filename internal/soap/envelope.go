package soap

import "fmt"

const envelopeTemplate = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<SOAP-ENV:Envelope` +
	` xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/"` +
	` xmlns:SOAP-ENC="http://schemas.xmlsoap.org/soap/encoding/"` +
	` xmlns:xsi="http://www.w3.org/1999/XMLSchema-instance"` +
	` xmlns:xsd="http://www.w3.org/1999/XMLSchema"` +
	` SOAP-ENV:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">` +
	`<SOAP-ENV:Body><ns:%[1]s xmlns:ns="urn:%[2]s">%[3]s</ns:%[1]s></SOAP-ENV:Body>` +
	`</SOAP-ENV:Envelope>`

// Envelope returns the request body invoking method in the urn:server
// namespace. params is inserted as-is; callers are responsible for escaping.
// The ns, xsi and xsd prefixes are declared for use inside params.
func Envelope(server, method, params string) string {
	return fmt.Sprintf(envelopeTemplate, method, server, params)
}
