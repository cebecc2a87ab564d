package model

// Travel is a reusable trip record that several match reports can point at
// through their travelId.
type Travel struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Author    Author    `json:"author"`
	Season    string    `json:"season,omitempty"`
	StartDate string    `json:"startDate,omitempty"`
	EndDate   string    `json:"endDate,omitempty"`
	Duration  string    `json:"duration,omitempty"`
	Cities    []string  `json:"cities,omitempty"`
	Flights   []Flight  `json:"flights,omitempty"`
	Hotels    []Hotel   `json:"hotels,omitempty"`
	Costs     *Costs    `json:"costs,omitempty"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// Spot is a recommended place posted on its own.
type Spot struct {
	ID        string   `json:"id"`
	AuthorID  string   `json:"authorId"`
	Author    Author   `json:"author"`
	Name      string   `json:"name"`
	URL       string   `json:"url,omitempty"`
	Comment   string   `json:"comment,omitempty"`
	Rating    float64  `json:"rating"`
	ImageURLs []string `json:"imageUrls"`
	Country   string   `json:"country,omitempty"`
	Category  string   `json:"category,omitempty"`
	Address   string   `json:"address,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`

	LikeCount     int `json:"likeCount"`
	HelpfulCount  int `json:"helpfulCount"`
	BookmarkCount int `json:"bookmarkCount"`
	ViewCount     int `json:"viewCount"`

	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// Banner is an admin-managed announcement shown at the top of the feed.
type Banner struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Subtitle  string    `json:"subtitle,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	LinkURL   string    `json:"linkUrl"`
	Order     int       `json:"order"`
	CreatedAt Timestamp `json:"createdAt"`
}

// Question is a reader's question on a post, answered by the post's author.
type Question struct {
	ID             string    `json:"id"`
	PostID         string    `json:"postId"`
	PostCollection string    `json:"postCollection"`
	AuthorID       string    `json:"authorId"`
	Body           string    `json:"body"`
	Answer         string    `json:"answer,omitempty"`
	AnsweredBy     string    `json:"answeredBy,omitempty"`
	AnsweredAt     Timestamp `json:"answeredAt"`
	CreatedAt      Timestamp `json:"createdAt"`
}

// Reaction is a document in one of the per-user subcollections (likes,
// bookmarks, thanks). Its id is the target post id.
type Reaction struct {
	Collection string    `json:"collection"`
	PostID     string    `json:"postId"`
	CreatedAt  Timestamp `json:"createdAt"`
}
