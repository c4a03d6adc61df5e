package tmdb

// ImageBaseURL is the CDN prefix for poster paths.
const ImageBaseURL = "https://image.tmdb.org/t/p/"

// Poster widths.
const (
	SizeThumbnail = "w200"
	SizePoster    = "w500"
)

// ImageURL builds a CDN URL for posterPath at the given width. It returns ""
// when posterPath is empty.
func ImageURL(size, posterPath string) string {
	if posterPath == "" {
		return ""
	}
	return ImageBaseURL + size + posterPath
}
