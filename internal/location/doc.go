// Package location keeps the user's last known position.
//
// The Tracker is the only writer of the sample; triggers read it at dispatch
// time and must cope with it being absent. Positions come from manual input or
// from a YAML fix file that a GPS daemon rewrites, re-read on a cron schedule.
package location
