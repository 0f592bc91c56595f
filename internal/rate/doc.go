// Package rate guards sensitive auth endpoints with a per-identifier
// fixed-window counter. The caller-facing decision interface is backend
// agnostic: [MemoryLimiter] serves single-instance deployments and
// [RedisLimiter] serves multi-instance ones; swapping backends never
// changes caller logic.
package rate
