// Package memory keeps media preparation within the container's memory.
//
// [ConfigureLimit] sets GOMEMLIMIT from the container limit unless
// GOMEMLIMIT is already set in the environment. The remainder is left for
// libvips, ffmpeg and other non-heap allocations.
//
// A [Monitor] samples heap usage against that limit. Once usage crosses the
// critical water mark it pauses preparation: [Monitor.Wait] blocks the queue
// worker before it decodes the next file, until usage falls back below the
// high water mark.
//
// Kubernetes can pass the limit with the Downward API:
//
//	env:
//	- name: MEDIAPREP_MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
package memory
