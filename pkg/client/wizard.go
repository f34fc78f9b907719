package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Step is a wizard position.
type Step int

const (
	StepUpload Step = iota
	StepSymptoms
	StepResults
)

func (s Step) String() string {
	if int(s) < 0 || int(s) >= len(wizardSteps) {
		return fmt.Sprintf("Step(%d)", int(s))
	}
	return wizardSteps[s].id
}

// ErrWrongStep is returned when an action is attempted outside its step.
var ErrWrongStep = errors.New("action not available at this step")

type stepSpec struct {
	id          string
	title       string
	description string
	// enter reports whether the wizard holds what the step needs.
	enter func(w *Wizard) error
}

var wizardSteps = []stepSpec{
	StepUpload: {
		id:          "upload",
		title:       "Upload Image",
		description: "Upload a clear image of the affected skin area",
		enter:       func(*Wizard) error { return nil },
	},
	StepSymptoms: {
		id:          "symptoms",
		title:       "Describe Symptoms",
		description: "Answer questions about your symptoms",
		enter: func(w *Wizard) error {
			if w.diagnosisID == "" {
				return errors.New("upload an image first")
			}
			return nil
		},
	},
	StepResults: {
		id:          "results",
		title:       "Get Results",
		description: "Review your diagnosis results",
		enter: func(w *Wizard) error {
			if w.results == nil {
				return errors.New("submit your symptoms first")
			}
			return nil
		},
	},
}

// Wizard drives one diagnosis through upload, symptoms and results. It has a
// single active step; it is not safe for concurrent use.
type Wizard struct {
	client *Client
	step   Step

	diagnosisID string
	imageURL    string
	results     *Results

	Questionnaire *Questionnaire
}

func NewWizard(c *Client) *Wizard {
	return &Wizard{client: c, Questionnaire: NewQuestionnaire()}
}

func (w *Wizard) Step() Step          { return w.step }
func (w *Wizard) DiagnosisID() string { return w.diagnosisID }
func (w *Wizard) ImageURL() string    { return w.imageURL }
func (w *Wizard) Results() *Results   { return w.results }
func (w *Wizard) Title() string       { return wizardSteps[w.step].title }
func (w *Wizard) Description() string { return wizardSteps[w.step].description }
func (w *Wizard) Completed() bool     { return w.step == StepResults }

// Next advances one step when the next step's prerequisites hold.
func (w *Wizard) Next() error {
	if w.step == StepResults {
		return ErrWrongStep
	}
	if err := wizardSteps[w.step+1].enter(w); err != nil {
		return err
	}
	w.step++
	return nil
}

// Back moves one step back. Results are final once computed.
func (w *Wizard) Back() bool {
	if w.step == StepUpload || w.step == StepResults {
		return false
	}
	w.step--
	return true
}

// Upload sends the image and moves to the symptom step. Uploading again
// from the upload step starts a new diagnosis.
func (w *Wizard) Upload(ctx context.Context, filename, contentType string, r io.Reader) error {
	if w.step != StepUpload {
		return ErrWrongStep
	}
	if !strings.HasPrefix(contentType, "image/") {
		return &FormError{Fields: map[string]string{"image": "only image files are allowed"}}
	}

	resp, err := w.client.UploadImage(ctx, filename, contentType, r)
	if err != nil {
		return err
	}
	w.diagnosisID = resp.DiagnosisID
	w.imageURL = resp.ImageURL
	w.Questionnaire = NewQuestionnaire()
	return w.Next()
}

// Submit validates the whole questionnaire, submits it and moves to results.
func (w *Wizard) Submit(ctx context.Context) error {
	if w.step != StepSymptoms {
		return ErrWrongStep
	}
	if err := w.Questionnaire.Validate(); err != nil {
		return err
	}

	resp, err := w.client.SubmitSymptoms(ctx, w.diagnosisID, w.Questionnaire.Form.Answers())
	if err != nil {
		return err
	}
	w.results = resp.Results
	return w.Next()
}

// Refresh re-reads the stored results from the server.
func (w *Wizard) Refresh(ctx context.Context) error {
	if w.step != StepResults {
		return ErrWrongStep
	}
	res, err := w.client.Results(ctx, w.diagnosisID)
	if err != nil {
		return err
	}
	w.results = res
	return nil
}
