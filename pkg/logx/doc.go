// Package logx wraps zerolog behind a tiny structured-logging API.
//
// The Service owns a swappable root logger so log level and sinks can be
// changed at runtime (config hot reload) without rewiring callers.
package logx
