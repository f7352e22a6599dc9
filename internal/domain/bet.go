package domain

import "time"

// Bet is a participant's single stake in a competition. The pair
// (CompetitionID, Participant) is its identity.
type Bet struct {
	CompetitionID string     `json:"competition_id"`
	Participant   string     `json:"participant"`
	ChosenAsset   string     `json:"chosen_asset"`
	Amount        uint64     `json:"amount"`
	Timestamp     time.Time  `json:"timestamp"`
	Claimed       bool       `json:"claimed"`
	PayoutAmount  uint64     `json:"payout_amount"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
}

// Quote previews what a participant would receive from a claim.
type Quote struct {
	CompetitionID string `json:"competition_id"`
	Participant   string `json:"participant"`
	Eligible      bool   `json:"eligible"`
	Reason        string `json:"reason,omitempty"`
	Fee           uint64 `json:"fee"`
	FeeDue        bool   `json:"fee_due"`
	Distributable uint64 `json:"distributable"`
	Payout        uint64 `json:"payout"`
}
