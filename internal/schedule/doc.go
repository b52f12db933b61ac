// Package schedule evaluates pipeline cron schedules.
//
// It is responsible for:
//   - parsing cron expressions (5-field, optional seconds, descriptors)
//   - computing the earliest upcoming occurrence across a pipeline's schedules
//   - rendering the "Run on schedule ..." label
//   - the strict minute matcher used to pick pipelines due to start
package schedule
