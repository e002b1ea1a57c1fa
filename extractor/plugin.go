// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package extractor

import (
	"github.com/thediveo/go-plugger/v3"
)

// DefaultName is the name of the extractor plugin used unless configured
// otherwise.
const DefaultName = "urlsgrab"

// Extractor allows specialized log line extractor plugins to interface with
// the generic container log watchers.
type Extractor interface {
	// Extract looks for a request outcome in the specified raw log line,
	// returning the textual status code and the domain. If the line doesn't
	// match, ok is false. The returned slices may alias the line.
	Extract(line []byte) (status []byte, domain []byte, ok bool)
}

// Named returns the registered extractor plugin with the specified name, or
// nil if there is no such plugin.
func Named(name string) Extractor {
	for _, sym := range plugger.Group[Extractor]().PluginsSymbols() {
		if sym.Plugin == name {
			return sym.S
		}
	}
	return nil
}

// Names returns the names of all registered extractor plugins.
func Names() []string {
	return plugger.Group[Extractor]().Plugins()
}
