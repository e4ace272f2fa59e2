package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/drakos74/hybrid-digits/internal/algo/predict"
	"github.com/drakos74/hybrid-digits/internal/model"
	"github.com/drakos74/hybrid-digits/internal/session"
)

// Loop is the session behind the api.
type Loop interface {
	Ready() bool
	Initialize(ctx context.Context, cfg model.SystemConfig) (session.Report, error)
	Next() (model.Sample, error)
	Predict(image model.Image) (predict.Prediction, error)
	Present(image model.Image, trueLabel model.Label) (model.Sample, error)
	Feedback(id string, kind model.Feedback) (model.Sample, error)
	Verify(id string, label model.Label) (model.Sample, error)
	Pending() []model.Sample
	Stats() model.Snapshot
	Reset() error
}

// PredictRequest asks for the label of an image.
// If the true label is given, the prediction is recorded as a sample.
type PredictRequest struct {
	Image model.Image  `json:"image"`
	Label *model.Label `json:"label,omitempty"`
}

type FeedbackRequest struct {
	ID       string `json:"id"`
	Feedback string `json:"feedback"`
}

type VerifyRequest struct {
	ID    string      `json:"id"`
	Label model.Label `json:"label"`
}

// Status is the response of the state changing calls without a payload.
type Status struct {
	Ready bool `json:"ready"`
}

// API exposes the session over http.
type API struct {
	loop  Loop
	debug bool
}

func NewAPI(loop Loop) *API {
	return &API{loop: loop}
}

// Debug logs every request payload the api decodes.
func (a *API) Debug() *API {
	a.debug = true
	return a
}

// Routes returns the routes of the api.
func (a *API) Routes() []Route {
	return []Route{
		{Action: Api, Path: "init", Method: POST, Exec: a.init},
		{Action: Api, Path: "next", Method: GET, Exec: a.next},
		{Action: Api, Path: "predict", Method: POST, Exec: a.predict},
		{Action: Api, Path: "feedback", Method: POST, Exec: a.feedback},
		{Action: Api, Path: "verify", Method: POST, Exec: a.verify},
		{Action: Api, Path: "pending", Method: GET, Exec: a.pending},
		{Action: Api, Path: "stats", Method: GET, Exec: a.stats},
		{Action: Api, Path: "reset", Method: POST, Exec: a.reset},
	}
}

// StatusCode maps the domain errors to http status codes.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, model.ConfigInvalidErr),
		errors.Is(err, model.InvalidFeedbackErr),
		errors.Is(err, model.DimensionErr),
		errors.Is(err, model.NonFiniteErr):
		return http.StatusBadRequest
	case errors.Is(err, model.NotFoundErr):
		return http.StatusNotFound
	case errors.Is(err, model.ModelNotReadyErr),
		errors.Is(err, model.EmptyStoreErr):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func reply(v interface{}, err error) ([]byte, int, error) {
	if err != nil {
		return nil, StatusCode(err), err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("could not encode response: %w", err)
	}
	return b, http.StatusOK, nil
}

func (a *API) read(r *http.Request, v interface{}) error {
	if err := JsonRead(r, a.debug, v); err != nil {
		return fmt.Errorf("could not decode request: %v: %w", err, model.InvalidFeedbackErr)
	}
	return nil
}

func (a *API) init(r *http.Request) ([]byte, int, error) {
	cfg := model.DefaultConfig()
	if err := JsonRead(r, a.debug, &cfg); err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("could not decode config: %v: %w", err, model.ConfigInvalidErr)
	}
	return reply(a.loop.Initialize(r.Context(), cfg))
}

func (a *API) next(r *http.Request) ([]byte, int, error) {
	return reply(a.loop.Next())
}

func (a *API) predict(r *http.Request) ([]byte, int, error) {
	var request PredictRequest
	if err := a.read(r, &request); err != nil {
		return nil, http.StatusBadRequest, err
	}
	if request.Label != nil {
		return reply(a.loop.Present(request.Image, *request.Label))
	}
	return reply(a.loop.Predict(request.Image))
}

func (a *API) feedback(r *http.Request) ([]byte, int, error) {
	var request FeedbackRequest
	if err := a.read(r, &request); err != nil {
		return nil, http.StatusBadRequest, err
	}
	kind, err := model.ParseFeedback(request.Feedback)
	if err != nil {
		return reply(nil, err)
	}
	return reply(a.loop.Feedback(request.ID, kind))
}

func (a *API) verify(r *http.Request) ([]byte, int, error) {
	var request VerifyRequest
	if err := a.read(r, &request); err != nil {
		return nil, http.StatusBadRequest, err
	}
	return reply(a.loop.Verify(request.ID, request.Label))
}

func (a *API) pending(r *http.Request) ([]byte, int, error) {
	return reply(a.loop.Pending(), nil)
}

func (a *API) stats(r *http.Request) ([]byte, int, error) {
	return reply(a.loop.Stats(), nil)
}

func (a *API) reset(r *http.Request) ([]byte, int, error) {
	if err := a.loop.Reset(); err != nil {
		return reply(nil, err)
	}
	return reply(Status{Ready: a.loop.Ready()}, nil)
}
