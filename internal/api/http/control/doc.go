// Package control exposes the trigger controller over a local HTTP API.
//
// A presentation layer (a UI shell or a shell script) reads the status of
// every trigger and drives them through the routes registered by NewServer.
// Notices produced by the controller are kept in a bounded NoticeLog and
// served from /notices.
package control
