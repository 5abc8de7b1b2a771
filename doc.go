// Package prioring is a fixed-capacity priority ring buffer and the small
// pipeline built around it.
//
// # Philosophy
//
// A ring is a set of lanes over one contiguous block of memory, allocated
// once at registration. Lane 0 is the highest priority. Each lane is a
// single-producer single-consumer queue, so Push and Pop take no locks and
// never allocate. A full lane rejects the push instead of overwriting unread
// data; backpressure is the caller's decision.
//
// # Architecture
//
//	producer per lane ──Push──▶ ┌──────────── ring ────────────┐
//	                            │ lane 0 ▕▕▕▕▕▕▕  (highest)    │
//	                            │ lane 1 ▕▕▕▕                  │──Pop──▶ Drainer ──▶ worker.Pool
//	                            │ lane N ▕▕▕▕▕▕▕▕▕▕  (lowest)   │
//	                            └──────────────────────────────┘
//
// Packages:
//   - pkg/ringbuffer: the ring itself, statistics and Prometheus export
//   - pkg/pump: PushWithRetry for producers and the Drainer consumer
//   - pkg/worker: generic worker pool the drainer hands items to
//   - pkg/retry: exponential backoff used while a lane is full
//   - config: layered JSON/YAML configuration checked against a JSON Schema
//   - health: ring health states, the monitor and the /rings endpoint
//   - metric: Prometheus registry, core metrics and the HTTP server
//   - errors: classified errors and the ring's sentinel errors
//
// # Running
//
//	go run ./cmd/prioring --config configs/example.yaml --duration 10s
//
// Metrics are served on :9090/metrics and aggregated ring health on
// :9090/rings by default.
package prioring
