package client

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Duration answers.
const (
	DurationLessThanWeek    = "lessThanWeek"
	Duration1To4Weeks       = "1-4weeks"
	Duration1To3Months      = "1-3months"
	Duration3To6Months      = "3-6months"
	DurationMoreThan6Months = "moreThan6months"
)

// Spread answers.
const (
	SpreadNo            = "no"
	SpreadSlightly      = "slightly"
	SpreadSignificantly = "significantly"
)

// TreatmentOptions are the accepted previous-treatment answers.
var TreatmentOptions = []string{
	"Over-the-counter creams",
	"Prescription medication",
	"Natural remedies",
	"None",
}

// SymptomForm is the symptom questionnaire. It is sent to the server as-is.
type SymptomForm struct {
	Duration           string   `json:"duration"           validate:"required,oneof=lessThanWeek 1-4weeks 1-3months 3-6months moreThan6months"`
	ItchLevel          int      `json:"itchLevel"          validate:"min=0,max=10"`
	PainLevel          int      `json:"painLevel"          validate:"min=0,max=10"`
	HasRedness         bool     `json:"hasRedness"`
	HasSwelling        bool     `json:"hasSwelling"`
	HasBlisters        bool     `json:"hasBlisters"`
	IsScaly            bool     `json:"isScaly"`
	HasSpread          string   `json:"hasSpread"          validate:"required,oneof=no slightly significantly"`
	PreviousTreatments []string `json:"previousTreatments" validate:"dive,oneof='Over-the-counter creams' 'Prescription medication' 'Natural remedies' 'None'"`
	AdditionalInfo     string   `json:"additionalInfo"     validate:"max=2000"`
}

// ToggleTreatment adds t if absent and removes it if present.
func (f *SymptomForm) ToggleTreatment(t string) {
	for i, cur := range f.PreviousTreatments {
		if cur == t {
			f.PreviousTreatments = append(f.PreviousTreatments[:i], f.PreviousTreatments[i+1:]...)
			return
		}
	}
	f.PreviousTreatments = append(f.PreviousTreatments, t)
}

// Answers renders the form as the free-form symptom map the API stores.
func (f *SymptomForm) Answers() map[string]any {
	treatments := f.PreviousTreatments
	if treatments == nil {
		treatments = []string{}
	}
	return map[string]any{
		"duration":           f.Duration,
		"itchLevel":          f.ItchLevel,
		"painLevel":          f.PainLevel,
		"hasRedness":         f.HasRedness,
		"hasSwelling":        f.HasSwelling,
		"hasBlisters":        f.HasBlisters,
		"isScaly":            f.IsScaly,
		"hasSpread":          f.HasSpread,
		"previousTreatments": treatments,
		"additionalInfo":     f.AdditionalInfo,
	}
}

// FormPage is one page of the questionnaire.
type FormPage struct {
	Title       string
	Description string
	// Fields are the struct field names validated when leaving the page.
	Fields []string
}

var formPages = []FormPage{
	{
		Title:       "Duration & Intensity",
		Description: "Tell us how long you've had these symptoms and their intensity",
		Fields:      []string{"Duration", "ItchLevel", "PainLevel"},
	},
	{
		Title:       "Symptoms",
		Description: "Tell us what the affected area looks like",
		Fields:      []string{"HasRedness", "HasSwelling", "HasBlisters", "IsScaly", "HasSpread"},
	},
	{
		Title:       "Treatment History",
		Description: "Tell us about any treatments you've tried",
		Fields:      []string{"PreviousTreatments", "AdditionalInfo"},
	},
}

var formValidator = validator.New()

// Questionnaire pages through a SymptomForm, validating each page before
// moving past it.
type Questionnaire struct {
	Form SymptomForm
	page int
}

func NewQuestionnaire() *Questionnaire {
	return &Questionnaire{}
}

func (q *Questionnaire) Page() FormPage { return formPages[q.page] }
func (q *Questionnaire) Index() int     { return q.page }
func (q *Questionnaire) Pages() int     { return len(formPages) }
func (q *Questionnaire) IsLast() bool   { return q.page == len(formPages)-1 }

// Next validates the current page and advances. On the last page it
// validates the whole form and reports done.
func (q *Questionnaire) Next() (done bool, err error) {
	if err := q.validatePage(q.page); err != nil {
		return false, err
	}
	if q.IsLast() {
		return true, q.Validate()
	}
	q.page++
	return false, nil
}

// Back moves to the previous page; it reports false on the first page.
func (q *Questionnaire) Back() bool {
	if q.page == 0 {
		return false
	}
	q.page--
	return true
}

// Validate checks every field of the form.
func (q *Questionnaire) Validate() error {
	return formError(formValidator.Struct(&q.Form))
}

func (q *Questionnaire) validatePage(i int) error {
	return formError(formValidator.StructPartial(&q.Form, formPages[i].Fields...))
}

// FormError lists the invalid answers of a page or form.
type FormError struct {
	Fields map[string]string
}

func (e *FormError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, name := range slices.Sorted(maps.Keys(e.Fields)) {
		msgs = append(msgs, e.Fields[name])
	}
	return strings.Join(msgs, "; ")
}

func formError(err error) error {
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	fe := &FormError{Fields: make(map[string]string, len(ve))}
	for _, f := range ve {
		name := f.Field()
		switch f.Tag() {
		case "required":
			fe.Fields[name] = name + " is required"
		case "oneof":
			fe.Fields[name] = fmt.Sprintf("%s must be one of: %s", name, f.Param())
		case "min", "max":
			fe.Fields[name] = fmt.Sprintf("%s is out of range", name)
		default:
			fe.Fields[name] = fmt.Sprintf("%s failed validation (%s)", name, f.Tag())
		}
	}
	return fe
}
