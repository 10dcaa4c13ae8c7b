package panel

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidForm wraps every form validation failure.
var ErrInvalidForm = errors.New("invalid form")

// DefaultSectorColor is used when a sector form leaves the color empty.
const DefaultSectorColor = "#3b82f6"

// Form carries the details entered for a new or managed entity. Fields that
// do not apply to the entity kind are ignored.
type Form struct {
	Name        string `json:"name" validate:"required,max=120"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
	Notes       string `json:"notes" validate:"max=2000"`
	Type        string `json:"type" validate:"omitempty,oneof=base victim hazard ground_team canine generic"`
	Description string `json:"description" validate:"max=2000"`
	VideoURL    string `json:"videoUrl" validate:"omitempty,url"`
	Status      string `json:"status" validate:"omitempty,oneof=active standby returning offline"`
}

// DispatchForm assigns a fleet aircraft and pilot to the mission map.
type DispatchForm struct {
	AircraftID string   `json:"aircraftId" validate:"required"`
	PilotID    string   `json:"pilotId" validate:"required"`
	Lat        *float64 `json:"lat" validate:"omitempty,min=-90,max=90"`
	Lng        *float64 `json:"lng" validate:"omitempty,min=-180,max=180"`
	SectorID   string   `json:"sectorId"`
	Status     string   `json:"status" validate:"omitempty,oneof=active standby returning offline"`
	VideoURL   string   `json:"videoUrl" validate:"omitempty,url"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

func validateForm(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidForm, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidForm, strings.Join(msgs, "; "))
}
