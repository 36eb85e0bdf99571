// Package task orchestrates remote task execution: it routes submissions
// to the backend named by the selector, polls status until a terminal
// state, and rediscovers the backend kind of ambiguous lookups by trying
// the dominant kind first and falling back once to the alternate.
package task
