// Package cmd implements the sitemirror command line.
//
// Architecture overview:
//   - Configuration: internal/config loads the YAML document named on the command line through Viper, applies
//     SITEMIRROR_* environment overrides and compiles every step selector before any network activity.
//   - Task source: internal/source wraps a synchronous Colly collector with a FIFO of pending submissions, a
//     per-definition domain allow-list, robots.txt enforcement and a random per-domain delay between requests.
//   - Step pipeline: internal/pipeline consumes one step per fetched page. Link extraction fans out into child
//     directories named after the link text; resource extraction yields an ordered download batch.
//   - Downloads: internal/download fetches each resource with a bounded timeout, writes it atomically and pauses
//     for a fixed interval after every attempt.
//   - Observability: zap logs every decision point; Prometheus counters are exported on --metrics-addr when set.
//
// Operational notes:
//   - Definitions run strictly one after another; nothing is fetched concurrently.
//   - Reruns are resumable: any existing directory or file is skipped without a request.
//   - SIGINT/SIGTERM cancel the run between requests; partially written files never reach their final name.
package cmd
