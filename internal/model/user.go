package model

// SocialLinks are optional profile links.
type SocialLinks struct {
	X         string `json:"x,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	YouTube   string `json:"youtube,omitempty"`
	Note      string `json:"note,omitempty"`
}

type TravelStats struct {
	Countries int `json:"countries"`
	Matches   int `json:"matches"`
	Stadiums  int `json:"stadiums"`
}

// User is the public profile stored at users/{uid}. The document id is the
// identity provider's subject, so the same Google account always maps to the
// same profile.
type User struct {
	ID               string      `json:"id"`
	Nickname         string      `json:"nickname"`
	Handle           string      `json:"handle"` // public id shown in profile URLs
	AvatarURL        string      `json:"avatarUrl"`
	Bio              string      `json:"bio,omitempty"`
	Email            string      `json:"email,omitempty"`
	Social           SocialLinks `json:"social"`
	TravelStats      TravelStats `json:"travelStats"`
	VisitedCountries []string    `json:"visitedCountries"`
	CreatedAt        Timestamp   `json:"createdAt"`
	UpdatedAt        Timestamp   `json:"updatedAt"`
}
