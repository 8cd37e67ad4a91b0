// Package wedding holds the wedding record the selection layer tracks.
package wedding

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMissingField = errors.New("wedding: missing required field")
	ErrInvalidDate  = errors.New("wedding: invalid wedding date")
)

type Wedding struct {
	ID          string  `json:"id,omitempty"`
	BrideName   string  `json:"brideName"`
	GroomName   string  `json:"groomName"`
	WeddingDate string  `json:"weddingDate,omitempty"`
	Venue       string  `json:"venue,omitempty"`
	City        string  `json:"city,omitempty"`
	TotalBudget float64 `json:"totalBudget,omitempty"`
	Theme       string  `json:"theme,omitempty"`
	Notes       string  `json:"notes,omitempty"`
	Hashtag     string  `json:"hashtag,omitempty"`
}

// UnmarshalJSON accepts both "id" and the backend's document "_id".
func (w *Wedding) UnmarshalJSON(data []byte) error {
	type plain Wedding
	var aux struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*w = Wedding(aux.plain)
	if w.ID == "" {
		w.ID = aux.MongoID
	}
	return nil
}

// DisplayName renders "Bride & Groom", dropping whichever side is missing.
func (w Wedding) DisplayName() string {
	bride := strings.TrimSpace(w.BrideName)
	groom := strings.TrimSpace(w.GroomName)
	switch {
	case bride != "" && groom != "":
		return bride + " & " + groom
	case bride != "":
		return bride
	default:
		return groom
	}
}

// Date parses WeddingDate as RFC 3339 or a plain calendar date.
func (w Wedding) Date() (time.Time, bool) {
	if w.WeddingDate == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, w.WeddingDate); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, w.WeddingDate); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Validate checks the fields the planner form requires before a create.
func (w Wedding) Validate() error {
	var errs []error
	for _, f := range []struct {
		name, value string
	}{
		{"brideName", w.BrideName},
		{"groomName", w.GroomName},
		{"weddingDate", w.WeddingDate},
		{"city", w.City},
		{"venue", w.Venue},
	} {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingField, f.name))
		}
	}
	if w.WeddingDate != "" {
		if _, ok := w.Date(); !ok {
			errs = append(errs, ErrInvalidDate)
		}
	}
	return errors.Join(errs...)
}
