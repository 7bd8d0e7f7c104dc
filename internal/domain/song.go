package domain

// Song is one playable track from a category's song set.
// Year is the value players guess against.
type Song struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Year       int    `json:"year"`
	Category   string `json:"category,omitempty"`
	SpotifyURL string `json:"spotifyUrl,omitempty"`
}
