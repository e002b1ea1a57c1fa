// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

/*
Package urlsgrab provides the extractor plugin for the request log lines
written by ArchiveTeam's “urls-grab” project containers, such as:

	11=200 https://example.com/path

The number after the “=” is the HTTP status code of the response, the host
part of the URL is taken as the domain.
*/
package urlsgrab

import (
	"regexp"

	"github.com/siemens/logtally/extractor"
	"github.com/thediveo/go-plugger/v3"
)

// Register this extractor plugin. This statically ensures that the Extractor
// interface is fully implemented.
func init() {
	plugger.Group[extractor.Extractor]().Register(
		&Extractor{}, plugger.WithPlugin(extractor.DefaultName))
}

// requestRe matches "<attempt>=<status> http[s]://<domain>/". Go's regexp
// matches in linear time and works on arbitrary, even invalid UTF-8 bytes.
var requestRe = regexp.MustCompile(`[0-9]+=([0-9]+) https?://([^/]+)/`)

// Extractor implements the extractor.Extractor interface.
type Extractor struct{}

// Extract returns the status code and domain of the first request found in
// the line.
func (e *Extractor) Extract(line []byte) (status []byte, domain []byte, ok bool) {
	m := requestRe.FindSubmatchIndex(line)
	if m == nil {
		return nil, nil, false
	}
	return line[m[2]:m[3]], line[m[4]:m[5]], true
}
