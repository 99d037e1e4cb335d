// Package schedule fires the poll job on a cron or interval schedule.
//
// Schedule strings accept crontab expressions (with an optional seconds
// field), descriptors like "@hourly" and "@every 10m", bare Go durations
// like "10m", and HH:MM intervals like "02:30".
package schedule
