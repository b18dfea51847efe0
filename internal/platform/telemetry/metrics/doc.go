// Package metrics provides operational metrics collection.
//
// Metrics are registered against a caller-supplied Prometheus registerer so
// tests can use an isolated registry. The story service exposes them in
// Prometheus text format via Handler.
//
// # Metric Families
//
//   - mythos_story_choices_total: resolved choices by outcome
//   - mythos_story_generation_total: generation attempts by provider and result
//   - mythos_story_generation_seconds: generation latency by provider
//   - mythos_story_deaths_total: characters reaching the death node
//   - mythos_http_requests_total / mythos_http_request_seconds: API traffic
package metrics
