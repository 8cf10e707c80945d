// Package manifest contains the data model shared by the upload and the
// restore path: content digests, logical paths, inventories, the manifest
// line format and archive names. It also implements the two pure algorithms
// of the engine, Diff, which decides what has to be archived, and Resolve,
// which decides which archive holds the latest version of every path.
package manifest
