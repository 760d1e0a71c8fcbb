package dealpipeline

import "testing"

func TestScoreWeightsMatchSpec(t *testing.T) {
	t.Parallel()

	d := NormalizedDeal{
		DiscountPercent: 50,
		Rating:          5,
		SalesRank:       0,
		CurrentPrice:    0,
	}
	// discount=50*0.5=25, rating_score=100*0.35=35, rank_score=100*0.10=10, price_score=100*0.05=5
	want := 25.0 + 35.0 + 10.0 + 5.0
	if got := Score(d); got != want {
		t.Errorf("Score = %v, want %v", got, want)
	}
}

func TestScoreClampsRankAndPrice(t *testing.T) {
	t.Parallel()

	d := NormalizedDeal{
		DiscountPercent: 0,
		Rating:          0,
		SalesRank:       999999999, // far beyond 100000 cap
		CurrentPrice:    999999,    // far beyond 500 cap
	}
	if got := Score(d); got != 0 {
		t.Errorf("Score = %v, want 0 (rank/price fully clamped, no discount/rating)", got)
	}
}

func TestIsSpamRejectsLowRating(t *testing.T) {
	t.Parallel()

	d := NormalizedDeal{Title: "Good Keyboard", Rating: 3.0, CurrentPrice: 50, DiscountPercent: 10}
	if !IsSpam(d) {
		t.Error("expected spam rejection for rating < 3.5")
	}
}

func TestIsSpamRejectsCheapItems(t *testing.T) {
	t.Parallel()

	d := NormalizedDeal{Title: "Keyboard", Rating: 4.0, CurrentPrice: 5, DiscountPercent: 10}
	if !IsSpam(d) {
		t.Error("expected spam rejection for current_price < 10")
	}
}

func TestIsSpamRejectsExcessiveDiscount(t *testing.T) {
	t.Parallel()

	d := NormalizedDeal{Title: "Keyboard", Rating: 4.0, CurrentPrice: 50, DiscountPercent: 85}
	if !IsSpam(d) {
		t.Error("expected spam rejection for discount > 80")
	}
}

func TestIsSpamRejectsDropshipTitle(t *testing.T) {
	t.Parallel()

	d := NormalizedDeal{Title: "Cheap Fast Shipping Dropship Keyboard", Rating: 3.2, CurrentPrice: 20, DiscountPercent: 90}
	if !IsSpam(d) {
		t.Error("expected spam rejection for dropship/fast-shipping title")
	}
}

func TestIsSpamAcceptsCleanDeal(t *testing.T) {
	t.Parallel()

	d := NormalizedDeal{Title: "Mechanical Keyboard", Rating: 4.2, CurrentPrice: 45, DiscountPercent: 30}
	if IsSpam(d) {
		t.Error("did not expect spam rejection for a clean deal")
	}
}

func TestIsSpamRejectsMissingTitle(t *testing.T) {
	t.Parallel()

	d := NormalizedDeal{Title: "", Rating: 4.2, CurrentPrice: 45, DiscountPercent: 30}
	if !IsSpam(d) {
		t.Error("expected spam rejection for missing title")
	}
}
