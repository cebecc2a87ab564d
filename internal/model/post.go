package model

// Author is the denormalized author block written on every post-like document.
type Author struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Stadium is where the match was played. Coordinates are optional and feed the map.
type Stadium struct {
	Name    string   `json:"name"`
	Address string   `json:"address,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

type Ticket struct {
	Type           string `json:"type,omitempty"`
	Seat           string `json:"seat,omitempty"`
	PurchaseMethod string `json:"purchaseMethod,omitempty"`
	Price          int    `json:"price,omitempty"`
}

// Match describes the game a report is about.
type Match struct {
	Competition string  `json:"competition,omitempty"`
	Season      string  `json:"season,omitempty"`
	HomeTeam    string  `json:"homeTeam"`
	AwayTeam    string  `json:"awayTeam"`
	HomeScore   *int    `json:"homeScore,omitempty"`
	AwayScore   *int    `json:"awayScore,omitempty"`
	Date        string  `json:"date,omitempty"`
	Stadium     Stadium `json:"stadium"`
	Ticket      *Ticket `json:"ticket,omitempty"`
}

type Flight struct {
	Direction    string `json:"direction,omitempty"` // outbound | return | transit
	Airline      string `json:"airline,omitempty"`
	FlightNumber string `json:"flightNumber,omitempty"`
	From         string `json:"from,omitempty"`
	To           string `json:"to,omitempty"`
	DepartAt     string `json:"departAt,omitempty"`
	ArriveAt     string `json:"arriveAt,omitempty"`
	SeatClass    string `json:"seatClass,omitempty"`
	Price        int    `json:"price,omitempty"`
}

type Hotel struct {
	Name    string   `json:"name"`
	City    string   `json:"city,omitempty"`
	URL     string   `json:"url,omitempty"`
	Nights  int      `json:"nights,omitempty"`
	Price   int      `json:"price,omitempty"`
	Rating  float64  `json:"rating,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
	Comment string   `json:"comment,omitempty"`
}

// SpotNote is a place recommended inside a trip report.
type SpotNote struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// Costs are in JPY.
type Costs struct {
	Flight    int `json:"flight,omitempty"`
	Hotel     int `json:"hotel,omitempty"`
	Ticket    int `json:"ticket,omitempty"`
	Transport int `json:"transport,omitempty"`
	Food      int `json:"food,omitempty"`
	Other     int `json:"other,omitempty"`
	Total     int `json:"total,omitempty"`
}

// Sum fills Total from the parts when it was left empty.
func (c Costs) Sum() Costs {
	if c.Total == 0 {
		c.Total = c.Flight + c.Hotel + c.Ticket + c.Transport + c.Food + c.Other
	}
	return c
}

// Post is a trip report. The same shape is written to "posts" (full form) and
// "simple-posts" (match, episode and photos only).
type Post struct {
	ID        string     `json:"id"`
	AuthorID  string     `json:"authorId"`
	Author    Author     `json:"author"`
	Title     string     `json:"title,omitempty"`
	Match     *Match     `json:"match,omitempty"`
	TravelID  string     `json:"travelId,omitempty"`
	Flights   []Flight   `json:"flights,omitempty"`
	Hotels    []Hotel    `json:"hotels,omitempty"`
	Spots     []SpotNote `json:"spots,omitempty"`
	Costs     *Costs     `json:"costs,omitempty"`
	Episode   string     `json:"episode,omitempty"`
	Advice    string     `json:"advice,omitempty"`
	Items     string     `json:"items,omitempty"`
	ImageURLs []string   `json:"imageUrls"`

	LikeCount     int `json:"likeCount"`
	HelpfulCount  int `json:"helpfulCount"`
	BookmarkCount int `json:"bookmarkCount"`
	ViewCount     int `json:"viewCount"`

	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}
