// Package safety is the REST client of the remote safety API.
//
// It submits alerts, reads user settings and fetches emergency numbers. Alert
// fan-out to contacts, authentication and scoring all happen server-side.
package safety
