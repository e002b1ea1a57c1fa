// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package logtally

import "strings"

// imageName returns the specified image reference without any digest and tag.
// A colon only starts a tag when it comes after the last slash, as otherwise
// it separates a registry host from its port, such as in
// “registry.example:5000/foo”.
func imageName(ref string) string {
	if at := strings.IndexByte(ref, '@'); at >= 0 {
		ref = ref[:at]
	}
	if colon := strings.LastIndexByte(ref, ':'); colon > strings.LastIndexByte(ref, '/') {
		ref = ref[:colon]
	}
	return ref
}
