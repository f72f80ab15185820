// Package preflight provides readiness checks for the filesystem paths a
// conversion depends on.
//
// These checks run in two contexts:
//   - The conversion pipeline calls ForConversion before parsing, so an
//     unreadable input or unwritable destination fails before any download.
//   - The CLI "config validate" command uses ForConfig to display the state
//     of the spool and log directories.
package preflight
