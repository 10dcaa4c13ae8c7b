// pkg/core/errors.go
package core

import "fmt"

// LoadFailure means mission data or reference lists could not be fetched.
// It is terminal for the view that hit it.
type LoadFailure struct {
	MissionID string
	Err       error
}

func (e *LoadFailure) Error() string {
	return fmt.Sprintf("load mission %s: %v", e.MissionID, e.Err)
}

func (e *LoadFailure) Unwrap() error { return e.Err }

// MutationFailure means the entity store rejected a create, update or delete.
type MutationFailure struct {
	Op  string // create, update, delete
	Ref EntityRef
	Err error
}

func (e *MutationFailure) Error() string {
	if e.Ref.ID == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Ref.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Ref, e.Err)
}

func (e *MutationFailure) Unwrap() error { return e.Err }

// SubscriptionFailure means the telemetry channel could not be established.
type SubscriptionFailure struct {
	Topic string
	Err   error
}

func (e *SubscriptionFailure) Error() string {
	return fmt.Sprintf("subscribe %s: %v", e.Topic, e.Err)
}

func (e *SubscriptionFailure) Unwrap() error { return e.Err }

// CaptureFailure means snapshot rasterization or upload failed.
type CaptureFailure struct {
	MissionID string
	Stage     string // settle, rasterize, encode, store, record
	Err       error
}

func (e *CaptureFailure) Error() string {
	return fmt.Sprintf("capture %s (%s): %v", e.MissionID, e.Stage, e.Err)
}

func (e *CaptureFailure) Unwrap() error { return e.Err }
