// Package ingestionservice contains the Pulse event ingestion core.
//
// Events accepted over HTTP are published to the broker and consumed in
// batches into Postgres with inbox-based dedup, so broker redelivery never
// produces duplicate rows. The module keeps domain/application logic
// decoupled from runtime/platform concerns through ports and adapter
// composition.
package ingestionservice
