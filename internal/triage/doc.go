// Package triage maps free-text symptom descriptions to a next-step
// recommendation. The mapping is an ordered rule table evaluated first match
// wins over the case-folded text, with optional age/gender guards. A Mapper is
// immutable once built and safe for concurrent use.
package triage
