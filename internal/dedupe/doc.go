// Package dedupe provides a time-bounded cache used to answer retried
// requests with the result of the first attempt instead of re-running them.
package dedupe
