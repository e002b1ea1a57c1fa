// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package all

import (
	_ "github.com/siemens/logtally/extractor/urlsgrab" // archiveteam urls-grab request lines
)
