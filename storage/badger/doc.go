// Package badger provides BadgerDB-backed implementations of the
// storage repositories: the record store, the run repository and the
// sync state repository. All repositories share a single Backend and
// encode values with the mus serializers from the storage package.
package badger
