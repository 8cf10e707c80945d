// Package restorer reconstructs the latest version of every file from the
// archives of a remote store.
//
// All manifests are merged first, so that every logical path is assigned to
// the newest archive listing it. Each archive is then streamed from the
// store, decrypted and extracted with a selection list of exactly the paths
// it won. An archive counts as restored once every selected path has been
// reported by the extractor and the pipeline exited cleanly.
package restorer
