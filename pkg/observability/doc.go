/*
Package observability turns simulator lifecycle hooks into Prometheus metrics
and structured log lines.
*/
package observability
