// Package sending prepares outgoing files for upload.
//
// A FileLoadTask runs on a tasks.Queue worker: it reads the source,
// classifies it, builds thumbnails and photo sizes, splits the payload into
// parts and assembles a FileLoadResult. Its Finish method runs on the owner
// loop and hands the result to a Confirmer, or reports a failure through a
// Notifier and drops the task from its Album.
//
// An Album groups the items of one multi-file send and keeps the shared
// caption on its first item.
package sending
