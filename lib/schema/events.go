// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "time"

// EventType is the detail-type string published with a domain event.
type EventType string

const (
	EventTypeLeaseRequested             EventType = "LeaseRequested"
	EventTypeLeaseApproved              EventType = "LeaseApproved"
	EventTypeLeaseDenied                EventType = "LeaseDenied"
	EventTypeLeaseFrozen                EventType = "LeaseFrozen"
	EventTypeLeaseUnfrozen              EventType = "LeaseUnfrozen"
	EventTypeLeaseTerminated            EventType = "LeaseTerminated"
	EventTypeLeaseProvisioningFailed    EventType = "LeaseProvisioningFailed"
	EventTypeLeaseAlert                 EventType = "LeaseAlert"
	EventTypeCleanAccountRequest        EventType = "CleanAccountRequest"
	EventTypeBlueprintDeploymentRequest EventType = "BlueprintDeploymentRequest"
	EventTypeAccountQuarantined         EventType = "AccountQuarantined"
)

// Event is a typed domain event. Delivery is at-least-once and
// advisory: events inform downstream consumers (cleanup pipeline,
// notifications, blueprint deployer) and are never part of a saga's
// atomicity guarantee.
type Event interface {
	// EventType returns the detail-type string for the event bus.
	EventType() EventType
}

// LeaseRequested announces a new lease awaiting approval.
type LeaseRequested struct {
	Lease LeaseKey `json:"lease"`

	// TemplateUUID is the lease template the request was made from.
	TemplateUUID string `json:"templateUuid"`

	// RequiresApproval is false when the request was auto-approved in
	// the same operation.
	RequiresApproval bool `json:"requiresApproval"`
}

func (LeaseRequested) EventType() EventType { return EventTypeLeaseRequested }

// LeaseApproved announces that a lease reached Active and the user has
// access to the account.
type LeaseApproved struct {
	Lease        LeaseKey `json:"lease"`
	AWSAccountID string   `json:"awsAccountId"`
	ApprovedBy   string   `json:"approvedBy"`
}

func (LeaseApproved) EventType() EventType { return EventTypeLeaseApproved }

// LeaseDenied announces a rejected lease request.
type LeaseDenied struct {
	Lease    LeaseKey `json:"lease"`
	DeniedBy string   `json:"deniedBy"`
}

func (LeaseDenied) EventType() EventType { return EventTypeLeaseDenied }

// LeaseFrozenEvent announces a lease suspension. Reason distinguishes
// manual freezes from threshold-driven ones. The Event suffix keeps
// the type distinct from the LeaseFrozen status constant.
type LeaseFrozenEvent struct {
	Lease        LeaseKey `json:"lease"`
	AWSAccountID string   `json:"awsAccountId"`
	Reason       string   `json:"reason,omitempty"`
}

func (LeaseFrozenEvent) EventType() EventType { return EventTypeLeaseFrozen }

// LeaseUnfrozen announces a lease resuming from Frozen.
type LeaseUnfrozen struct {
	Lease        LeaseKey `json:"lease"`
	AWSAccountID string   `json:"awsAccountId"`
}

func (LeaseUnfrozen) EventType() EventType { return EventTypeLeaseUnfrozen }

// LeaseTerminated announces a lease reaching a terminal status.
type LeaseTerminated struct {
	Lease        LeaseKey    `json:"lease"`
	AWSAccountID string      `json:"awsAccountId"`
	FinalStatus  LeaseStatus `json:"finalStatus"`
}

func (LeaseTerminated) EventType() EventType { return EventTypeLeaseTerminated }

// LeaseProvisioningFailed announces that a blueprint deployment failed
// and the lease was reset to PendingApproval.
type LeaseProvisioningFailed struct {
	Lease        LeaseKey `json:"lease"`
	AWSAccountID string   `json:"awsAccountId"`
	Reason       string   `json:"reason,omitempty"`
}

func (LeaseProvisioningFailed) EventType() EventType { return EventTypeLeaseProvisioningFailed }

// LeaseAlert is the monitor's advisory notification for an Alert
// threshold crossing. No state changes.
type LeaseAlert struct {
	Lease LeaseKey `json:"lease"`

	// Kind is "budget" or "duration".
	Kind string `json:"kind"`

	// Threshold describes the crossed trigger point: the amountSpent
	// for budget alerts, the hoursRemaining for duration alerts.
	Threshold string `json:"threshold"`
}

func (LeaseAlert) EventType() EventType { return EventTypeLeaseAlert }

// CleanAccountRequest asks the external cleanup pipeline to wipe an
// account that just entered CleanUp.
type CleanAccountRequest struct {
	AWSAccountID string `json:"awsAccountId"`

	// Reason records what put the account into CleanUp, for example
	// "registration" or "lease termination".
	Reason string `json:"reason,omitempty"`
}

func (CleanAccountRequest) EventType() EventType { return EventTypeCleanAccountRequest }

// BlueprintDeploymentRequest asks the external deployer to install a
// blueprint into a provisioning lease's account. PublishLease is
// called when the deployment completes.
type BlueprintDeploymentRequest struct {
	Lease        LeaseKey `json:"lease"`
	AWSAccountID string   `json:"awsAccountId"`
	BlueprintID  string   `json:"blueprintId"`
}

func (BlueprintDeploymentRequest) EventType() EventType { return EventTypeBlueprintDeploymentRequest }

// AccountQuarantined announces an account pulled from circulation.
type AccountQuarantined struct {
	AWSAccountID string `json:"awsAccountId"`

	// DetectedAt is when the drift or violation was observed.
	DetectedAt time.Time `json:"detectedAt"`

	// Reason is a short operator-facing explanation.
	Reason string `json:"reason,omitempty"`
}

func (AccountQuarantined) EventType() EventType { return EventTypeAccountQuarantined }
