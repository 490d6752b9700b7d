// Package core contains the certificate issuance domain: entities, collaborator
// contracts, the issuance saga and the service that orchestrates publisher,
// ledger and record store writes. Adapters (publisher, ledger, store/sql) depend
// on this package; core must not depend on any of them.
package core
