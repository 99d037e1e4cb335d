// Package alerts delivers operator alerts to the admin chat.
//
// Alerts are small, high-signal messages about the bot's own health
// (fetch failures, storage trouble). Delivery is asynchronous: intake
// goes through a bounded queue, a single worker paces sends with a
// rate limiter and retries failures with backoff, and repeated
// identical alerts inside the dedup window are suppressed. Subscriber
// notifications never pass through this pipeline.
package alerts
