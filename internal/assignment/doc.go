// Package assignment handles the assignment manifest and the files
// nbsetup generates from it.
//
// The manifest (assignment.jsonc) is how an instructor customizes the
// setup for a course: assignment title, minimum Python version, package
// pins, and the notebook filename. The format is JSONC (JSON with
// Comments) so instructors can annotate their pins; comments are
// stripped with github.com/tidwall/jsonc before parsing with the
// standard encoding/json.
//
// When no manifest is present, built-in defaults reproduce the original
// Visual Essay assignment: pandas + plotly + jupyter on Python 3.8+.
//
// Generated artifacts:
//   - requirements.txt (only when absent — an existing file is used as-is)
//   - the starter notebook (only when absent)
//   - environment.lock.yaml, a snapshot of what setup actually installed
package assignment
