// Package models holds the GORM rows of the cash desk tables.
//
// Domain aggregates carry no ORM tags. Each model here converts to and from
// its aggregate (FromDomain / ToDomain) and repositories only ever persist models.
//
//   - base.go: shared identity, version and tenant columns
//   - cashdesk.go: cash sessions with their incidents and change log, ledger entries, receipt counters
package models
