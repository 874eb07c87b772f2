// Package settings keeps the user settings snapshot used by the triggers.
//
// The Store starts from the local configuration and is refreshed from the
// safety API by Sync. A failed pull keeps the previous values.
package settings
