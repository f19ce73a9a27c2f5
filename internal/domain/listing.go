package domain

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// TranscriptionResult is what the remote service derived from a recording.
type TranscriptionResult struct {
	TranscribedText string `json:"transcribed_text"`
	Description     string `json:"description"`
	ProductName     string `json:"product_name"`
	Quantity        string `json:"quantity"`
	Price           string `json:"price"`
	Category        string `json:"category"`
	PriceRange      string `json:"price_range,omitempty"`
	WhereToSell     string `json:"where_to_sell,omitempty"`
	SellingTip      string `json:"selling_tip,omitempty"`
}

// ProductDraft holds the editable listing fields, seeded from a
// TranscriptionResult.
type ProductDraft struct {
	ProductName string `json:"product_name" validate:"required"`
	Quantity    string `json:"quantity" validate:"required"`
	Price       string `json:"price" validate:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

func DraftFromResult(r TranscriptionResult) ProductDraft {
	d := ProductDraft{
		ProductName: r.ProductName,
		Quantity:    r.Quantity,
		Price:       r.Price,
		Description: r.Description,
		Category:    r.Category,
	}
	return d.Normalize()
}

// Normalize trims every field and puts it in NFC form so the same word
// typed or transcribed in an Indic script compares equal.
func (d ProductDraft) Normalize() ProductDraft {
	return ProductDraft{
		ProductName: clean(d.ProductName),
		Quantity:    clean(d.Quantity),
		Price:       clean(d.Price),
		Description: clean(d.Description),
		Category:    clean(d.Category),
	}
}

func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Submission is a saved listing as handed to the product store.
type Submission struct {
	Draft        ProductDraft
	Result       TranscriptionResult
	Language     Language
	FarmerMobile string
}

// TranscribedText falls back to the draft fields when the service
// returned no transcript.
func (s Submission) TranscribedText() string {
	if s.Result.TranscribedText != "" {
		return s.Result.TranscribedText
	}
	return s.Draft.ProductName + " " + s.Draft.Quantity + " " + s.Draft.Price
}
