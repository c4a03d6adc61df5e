// Package title turns noisy retail product titles into movie search queries.
//
// Retail listings decorate the film name with format, packaging and edition
// tokens ("DVD", "Blu-ray", "Special Edition", "2-Disc Set", release years).
// Normalize strips that noise so the remaining text can be sent to a movie
// metadata search.
package title
