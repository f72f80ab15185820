// Package fetch downloads dataset images into a spool directory with a fixed
// worker pool.
//
// Every download is bounded by a timeout and a body size cap. Unless private
// hosts are explicitly allowed, URLs naming local hosts are rejected up front
// and the dialer refuses private, loopback, link-local, multicast and
// unspecified addresses after DNS resolution. Failures are reported as
// *DownloadError values on the result channel; they never stop the run.
package fetch
