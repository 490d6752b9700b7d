// Package publisher pins certificate metadata documents to IPFS. PinataPublisher
// talks to the Pinata pinning API; MemoryPublisher computes the same CIDv1
// locally and keeps blobs in memory for development and tests.
package publisher
