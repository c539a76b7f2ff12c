package service

import (
	"context"
	"fmt"

	"github.com/streetgottalent/vote-payments/internal/interfaces"
	"github.com/streetgottalent/vote-payments/internal/models"
)

// DefaultDonationMinimums is the per-currency donation floor in the smallest
// currency unit.
var DefaultDonationMinimums = map[string]int64{
	"NGN": 100000,
	"USD": 200,
	"GHS": 1500,
	"ZAR": 2000,
}

// Quoter recomputes authoritative amounts server-side. Whatever the client
// displayed or the widget was opened with is advisory; verification compares
// the provider-recorded amount against these figures.
type Quoter struct {
	streetfoods      interfaces.StreetfoodRepository
	seasons          interfaces.SeasonRepository
	donationMinimums map[string]int64
}

func NewQuoter(streetfoods interfaces.StreetfoodRepository, seasons interfaces.SeasonRepository, donationMinimums map[string]int64) *Quoter {
	if donationMinimums == nil {
		donationMinimums = DefaultDonationMinimums
	}
	return &Quoter{
		streetfoods:      streetfoods,
		seasons:          seasons,
		donationMinimums: donationMinimums,
	}
}

// VoteAmount prices a vote purchase: unit price times quantity.
func (q *Quoter) VoteAmount(ctx context.Context, itemID string, quantity int64) (int64, *models.StreetfoodItem, error) {
	if quantity < 1 {
		return 0, nil, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}
	item, err := q.streetfoods.GetByID(ctx, itemID)
	if err != nil {
		return 0, nil, err
	}
	return item.Price * quantity, item, nil
}

// RegistrationAmount is the current season's fee.
func (q *Quoter) RegistrationAmount(ctx context.Context) (int64, error) {
	season, err := q.seasons.Current(ctx)
	if err != nil {
		return 0, err
	}
	return season.RegistrationFee, nil
}

// ValidateDonation enforces the supported-currency set and per-currency
// minimum before any provider transaction is opened.
func (q *Quoter) ValidateDonation(currency string, amount int64) error {
	min, ok := q.donationMinimums[currency]
	if !ok {
		return fmt.Errorf("%w: unsupported currency %q", ErrValidation, currency)
	}
	if amount < min {
		return fmt.Errorf("%w: minimum donation for %s is %d", ErrValidation, currency, min)
	}
	return nil
}

// ExpectedAmount recomputes what a payment for the intent must have charged.
func (q *Quoter) ExpectedAmount(ctx context.Context, intent models.PaymentIntent) (int64, error) {
	switch intent.Purpose {
	case models.PurposeVote:
		amount, _, err := q.VoteAmount(ctx, intent.ItemID, intent.Quantity)
		return amount, err
	case models.PurposeRegistration:
		return q.RegistrationAmount(ctx)
	case models.PurposeDonation:
		if err := q.ValidateDonation(intent.Currency, intent.Amount); err != nil {
			return 0, err
		}
		return intent.Amount, nil
	default:
		return 0, fmt.Errorf("%w: unknown purpose %q", ErrValidation, intent.Purpose)
	}
}
