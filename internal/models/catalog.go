package models

import "time"

// ContestantStatus tracks whether a contestant is still in the competition.
type ContestantStatus string

const (
	ContestantActive  ContestantStatus = "active"
	ContestantEvicted ContestantStatus = "evicted"
)

// Contestant is owned by the backend; votes are mutated only by the effect
// applier after a verified payment.
type Contestant struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	PerformanceType string            `json:"performance_type"`
	Votes           int64             `json:"votes"`
	Status          ContestantStatus  `json:"status"`
	Socials         map[string]string `json:"socials,omitempty"`
	ImageURL        string            `json:"image_url,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// StreetfoodItem is a vote-weight catalogue entry: buying one unit grants
// VotePower votes. Price is in the smallest currency unit.
type StreetfoodItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	VotePower int64  `json:"vote_power"`
	ImageURL  string `json:"image_url,omitempty"`
}

// SeasonStatus is the stage the current season is in.
type SeasonStatus string

const (
	SeasonAudition  SeasonStatus = "audition"
	SeasonGroup     SeasonStatus = "group"
	SeasonSemi      SeasonStatus = "semi"
	SeasonFinal     SeasonStatus = "final"
	SeasonCompleted SeasonStatus = "completed"
)

// Season carries the registration gate. Acceptance is re-checked at
// finalization time, not trusted from an earlier read.
type Season struct {
	ID              string       `json:"id"`
	Status          SeasonStatus `json:"status"`
	Acceptance      bool         `json:"acceptance"`
	RegistrationFee int64        `json:"registration_fee"`
}

// RegistrationPayload is the pending contestant a registration-fee payment
// finalizes.
type RegistrationPayload struct {
	Name            string            `json:"name"`
	Email           string            `json:"email"`
	PerformanceType string            `json:"performance_type"`
	Socials         map[string]string `json:"socials,omitempty"`
	ImageURL        string            `json:"image_url,omitempty"`
}

// DonationPayload is a free-form donation.
type DonationPayload struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// DonationReceipt is returned once a donation is recorded.
type DonationReceipt struct {
	ID         string    `json:"id"`
	Reference  string    `json:"reference"`
	DonorName  string    `json:"donor_name"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	RecordedAt time.Time `json:"recorded_at"`
}

// PerformanceTypes is the catalogue shown on the registration form.
var PerformanceTypes = []string{
	"Singing", "Dancing", "Magic", "Comedy", "Instrumental", "Poetry",
	"Beatboxing", "Acrobatics", "DJ/Mixing", "Painting/Art", "Other",
}
