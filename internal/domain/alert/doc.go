// Package alert contains the value types exchanged between the emergency
// triggers, the alert dispatcher and the remote safety API.
//
// LocationSample is owned by the location provider; the triggers read it but
// never change it, and Clone helpers keep callers from sharing pointers.
package alert
