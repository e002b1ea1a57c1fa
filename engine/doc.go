/*
Package engine defines the interface between the container discovery and log
watching machinery on one side and a particular container engine on the other
side.

An engine lists the currently running containers and opens following log
streams for individual containers. The engine-specific implementations live in
sub-packages, such as “moby” for Docker.
*/
package engine
