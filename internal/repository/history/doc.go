// Package history implements the local alert journal.
//
// The SQLRepository stores every dispatch attempt (sent, failed or rejected)
// in a SQLite database through gorm and exposes a Repository interface that
// the trigger dispatcher and the history command depend on.
package history
