// Package tmdb is the movie metadata client used to resolve scanned discs.
//
// It covers the three calls the catalog needs: title search, movie details and
// movie credits. The API key travels as the api_key query parameter. Every
// call is a single attempt; transport failures, non-2xx statuses and
// undecodable bodies are reported as *domain.ExternalServiceError.
package tmdb
