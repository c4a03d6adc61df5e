// Package catalog resolves disc barcodes to movie candidates and manages the
// persisted collection.
//
// Resolver turns a barcode into at most MaxCandidates metadata matches without
// writing anything. Service creates entries, either from a confirmed candidate
// or from manually entered fields, and exposes the CRUD operations. Both report
// failures with the sentinels and types in the domain package.
package catalog
