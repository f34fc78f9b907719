// Package inference holds the adapters behind ports.Classifier.
package inference

import (
	"context"

	"github.com/diagnosphere/skincheck-api/internal/core/domain"
	"github.com/diagnosphere/skincheck-api/internal/core/ports"
)

// ReferenceClassifier returns a fixed ranking regardless of input. It stands
// in for a real model in development and demos.
type ReferenceClassifier struct{}

func NewReferenceClassifier() *ReferenceClassifier {
	return &ReferenceClassifier{}
}

func (ReferenceClassifier) Classify(ctx context.Context, _ ports.ClassifyInput) (*domain.Results, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return referenceResults(), nil
}

// referenceResults builds a fresh copy so callers may not alias shared slices.
func referenceResults() *domain.Results {
	return &domain.Results{
		Predictions: []domain.Condition{
			{
				Name:        "Eczema",
				Probability: 0.65,
				Severity:    "Moderate",
				Description: "A chronic inflammatory skin condition characterized by dry, itchy, and inflamed skin. It often appears in patches and can cause significant discomfort.",
				NextSteps: []string{
					"Consult with a dermatologist for proper evaluation and treatment plan",
					"Avoid triggers such as harsh soaps, certain fabrics, and extreme temperatures",
					"Keep skin moisturized with fragrance-free emollients",
					"Apply prescribed topical medications as directed",
				},
				Treatments: []string{
					"Topical corticosteroids to reduce inflammation",
					"Calcineurin inhibitors (tacrolimus, pimecrolimus)",
					"Moisturizers and emollients to maintain skin hydration",
					"Antihistamines for itching relief",
					"Phototherapy for severe cases",
				},
			},
			{
				Name:        "Psoriasis",
				Probability: 0.20,
				Severity:    "Low probability",
				Description: "A chronic autoimmune condition that causes rapid skin cell turnover, resulting in thick, red patches with silvery scales. It can affect various body areas.",
				NextSteps: []string{
					"Monitor for changes in skin condition",
					"Maintain good skin hygiene and moisturizing routine",
					"Consider evaluation if symptoms worsen or change",
				},
				Treatments: []string{
					"Currently not indicated due to low probability",
					"General skin care with gentle cleansers and moisturizers is recommended",
				},
			},
			{
				Name:        "Contact Dermatitis",
				Probability: 0.15,
				Severity:    "Mild",
				Description: "An inflammatory skin condition resulting from contact with allergens or irritants. It causes redness, itching, and sometimes blistering at the site of contact.",
				NextSteps: []string{
					"Identify and avoid potential allergens or irritants",
					"Use hypoallergenic products for skin care and cleaning",
					"Apply cool compresses to relieve symptoms",
					"Consider patch testing to identify specific allergens",
				},
				Treatments: []string{
					"Topical corticosteroids for inflammation reduction",
					"Barrier creams to protect skin from irritants",
					"Oral antihistamines for itching",
					"Calamine lotion for symptom relief",
				},
			},
		},
		Severity: "Moderate",
		Recommendations: []string{
			"Keep the affected area clean and dry",
			"Apply moisturizer regularly",
			"Avoid scratching or rubbing the affected area",
			"Consider over-the-counter hydrocortisone cream",
			"Consult a dermatologist if symptoms worsen",
		},
	}
}
