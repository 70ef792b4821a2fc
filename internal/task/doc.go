// Package task implements the extraction task lifecycle: an in-process
// store of task records and the scheduler that owns the two legal state
// transitions (in_progress to completed, in_progress to error).
package task
