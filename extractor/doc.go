/*
Package extractor defines the plugin interface between the container log
watchers and the log line extractor plugins.

An extractor takes a single raw log line and either reports no match or the
textual HTTP status and the requested domain found in that line. Extractors
must be pure and must never panic, regardless of what bytes they get thrown
at.

The sub-package “all” pulls in all extractor plugins supported out-of-the-box
of this module. The individual extractor plugins are implemented in the other
sub-packages, such as “urlsgrab”.
*/
package extractor
