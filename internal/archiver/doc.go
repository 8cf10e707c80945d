// Package archiver publishes the files that changed since the last upload.
//
// An upload run compares the local inventory with the union of all remote
// manifests. The changed files are bundled, encrypted and checksummed in a
// private temporary directory, then the manifest, the payload and the
// checksum are uploaded in that order and the payload is verified by the
// remote store. All temporary files are removed when Publish returns.
package archiver
