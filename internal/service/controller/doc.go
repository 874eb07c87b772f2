// Package controller wires the emergency trigger controller to its
// collaborators and runs it.
//
// Open builds a Runtime from the configuration: the location tracker and its
// refresh schedule, the safety API client, the alert journal, the settings
// store and the recognition engine. Run drives the runtime from an
// interactive console and the local control surface; Panic, Voice and
// FakeCall drive a single trigger from the command line.
package controller
