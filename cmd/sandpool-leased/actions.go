// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sandpool-project/sandpool/lib/clock"
	"github.com/sandpool-project/sandpool/lib/codec"
	"github.com/sandpool-project/sandpool/lib/leasing"
	"github.com/sandpool-project/sandpool/lib/schema"
	"github.com/sandpool-project/sandpool/lib/service"
	"github.com/sandpool-project/sandpool/lib/version"
)

// Daemon holds the socket-facing state.
type Daemon struct {
	leasing   *leasing.Service
	clock     clock.Clock
	startedAt time.Time
	logger    *slog.Logger
}

func (d *Daemon) registerActions(server *service.SocketServer) {
	server.Handle("ping", d.handlePing)
	server.Handle("status", d.handleStatus)

	server.Handle("lease.request", d.handleLeaseRequest)
	server.Handle("lease.approve", d.handleLeaseApprove)
	server.Handle("lease.deny", d.handleLeaseDeny)
	server.Handle("lease.get", d.handleLeaseGet)
	server.Handle("lease.list", d.handleLeaseList)
	server.Handle("lease.freeze", d.handleLeaseFreeze)
	server.Handle("lease.unfreeze", d.handleLeaseUnfreeze)
	server.Handle("lease.terminate", d.handleLeaseTerminate)
	server.Handle("lease.publish", d.handleLeasePublish)
	server.Handle("lease.reset", d.handleLeaseReset)

	server.Handle("account.register", d.handleAccountRegister)
	server.Handle("account.clean", d.handleAccountClean)
	server.Handle("account.get", d.handleAccountGet)
	server.Handle("account.list", d.handleAccountList)
	server.Handle("account.eject", d.handleAccountEject)
	server.Handle("account.quarantine", d.handleAccountQuarantine)
	server.Handle("account.recycle", d.handleAccountRecycle)

	server.Handle("template.create", d.handleTemplateCreate)
	server.Handle("template.get", d.handleTemplateGet)
	server.Handle("template.list", d.handleTemplateList)
	server.Handle("template.delete", d.handleTemplateDelete)
}

// leaseKeyRequest is embedded in every per-lease request.
type leaseKeyRequest struct {
	UserEmail string `json:"userEmail"`
	UUID      string `json:"uuid"`
}

func (r leaseKeyRequest) key() (schema.LeaseKey, error) {
	if r.UserEmail == "" || r.UUID == "" {
		return schema.LeaseKey{}, fmt.Errorf("userEmail and uuid are required")
	}
	return schema.LeaseKey{UserEmail: r.UserEmail, UUID: r.UUID}, nil
}

// accountRequest is embedded in every per-account request.
type accountRequest struct {
	AWSAccountID string `json:"awsAccountId"`
}

func (r accountRequest) id() (string, error) {
	if !schema.ValidAccountID(r.AWSAccountID) {
		return "", fmt.Errorf("malformed awsAccountId %q", r.AWSAccountID)
	}
	return r.AWSAccountID, nil
}

func (d *Daemon) handlePing(ctx context.Context, raw []byte) (any, error) {
	return map[string]any{"pong": true}, nil
}

func (d *Daemon) handleStatus(ctx context.Context, raw []byte) (any, error) {
	return map[string]any{
		"version":        version.Short(),
		"started_at":     d.startedAt,
		"uptime_seconds": int64(d.clock.Now().Sub(d.startedAt).Seconds()),
	}, nil
}

func (d *Daemon) handleLeaseRequest(ctx context.Context, raw []byte) (any, error) {
	var req struct {
		UserEmail    string `json:"userEmail"`
		TemplateUUID string `json:"templateUuid"`
		Comments     string `json:"comments"`
	}
	if err := codec.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	if req.UserEmail == "" || req.TemplateUUID == "" {
		return nil, fmt.Errorf("userEmail and templateUuid are required")
	}
	return d.leasing.RequestLease(ctx, req.UserEmail, req.TemplateUUID, req.Comments)
}

func (d *Daemon) handleLeaseApprove(ctx context.Context, raw []byte) (any, error) {
	var req struct {
		leaseKeyRequest
		ApprovedBy string `json:"approvedBy"`
	}
	if err := codec.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	key, err := req.key()
	if err != nil {
		return nil, err
	}
	if req.ApprovedBy == "" {
		return nil, fmt.Errorf("approvedBy is required")
	}
	return d.leasing.ApproveLease(ctx, key, req.ApprovedBy)
}

func (d *Daemon) handleLeaseDeny(ctx context.Context, raw []byte) (any, error) {
	var req struct {
		leaseKeyRequest
		DeniedBy string `json:"deniedBy"`
	}
	if err := codec.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	key, err := req.key()
	if err != nil {
		return nil, err
	}
	if req.DeniedBy == "" {
		return nil, fmt.Errorf("deniedBy is required")
	}
	return d.leasing.DenyLease(ctx, key, req.DeniedBy)
}

func (d *Daemon) handleLeaseGet(ctx context.Context, raw []byte) (any, error) {
	var req leaseKeyRequest
	if err := codec.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	key, err := req.key()
	if err != nil {
		return nil, err
	}
	return d.leasing.GetLease(ctx, key)
}

// handleLeaseList lists by user when userEmail is set, otherwise by
// the given statuses (default: all monitored statuses).
func (d *Daemon) handleLeaseList(ctx context.Context, raw []byte) (any, error) {
	var req struct {
		UserEmail string   `json:"userEmail"`
		Statuses  []string `json:"statuses"`
	}
	if err := codec.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	if req.UserEmail != "" {
		return d.leasing.ListLeasesByUser(ctx, req.UserEmail)
	}
	statuses := schema.MonitoredLeaseStatuses()
	if len(req.Statuses) > 0 {
		statuses = make([]schema.LeaseStatus, len(req.Statuses))
		for i, status := range req.Statuses {
			statuses[i] = schema.LeaseStatus(status)
		}
	}
	return d.leasing.ListLeasesByStatus(ctx, statuses...)
}

func (d *Daemon) handleLeaseFreeze(ctx context.Context, raw []byte) (any, error) {
	var req struct {
		leaseKeyRequest
		Reason string `json:"reason"`
	}
	if err := codec.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	key, err := req.key()
	if err != nil {
		return nil, err
	}
	return d.leasing.FreezeLease(ctx, key, req.Reason)
}

func (d *Daemon) handleLeaseUnfreeze(ctx context.Context, raw []byte) (any, error) {
	var req leaseKeyRequest
	if err := codec.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	key, err := req.key()
	if err != nil {
		return nil, err
	}
	return d.leasing.UnfreezeLease(ctx, key)
}

func (d *Daemon) handleLeaseTerminate(ctx context.Context, raw []byte) (any, error) {
	var req leaseKeyRequest
	if err := codec.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	key, err := req.key()
	if err != nil {
		return nil, err
	}
	return d.leasing.TerminateLease(ctx, key, schema.LeaseManuallyTerminated)
}

func (d *Daemon) handleLeasePublish(ctx context.Context, raw []byte) (any, error) {
	var req leaseKeyRequest
	if err := codec.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	key, err := req.key()
	if err != nil {
		return nil, err
	}
	return d.leasing.PublishLease(ctx, key)
}

func (d *Daemon) handleLeaseReset(ctx context.Context, raw []byte) (any, error) {
	var req struct {
		leaseKeyRequest
		Reason string `json:"reason"`
	}
	if err := codec.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	key, err := req.key()
	if err != nil {
		return nil, err
	}
	return d.leasing.ResetLease(ctx, key, req.Reason)
}

func (d *Daemon) handleAccountRegister(ctx context.Context, raw []byte) (any, error) {
	var req struct {
		accountRequest
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := codec.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	awsAccountID, err := req.id()
	if err != nil {
		return nil, err
	}
	return d.leasing.RegisterAccount(ctx, awsAccountID, req.Email, req.Name)
}

func (d *Daemon) handleAccountClean(ctx context.Context, raw []byte) (any, error) {
	var req struct {
		accountRequest
		ExecutionID        string    `json:"executionId"`
		ExecutionStartTime time.Time `json:"executionStartTime"`
	}
	if err := codec.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	awsAccountID, err := req.id()
	if err != nil {
		return nil, err
	}
	execution := schema.CleanupExecution{
		ExecutionID:        req.ExecutionID,
		ExecutionStartTime: req.ExecutionStartTime,
	}
	if execution.ExecutionStartTime.IsZero() {
		execution.ExecutionStartTime = d.clock.Now()
	}
	return d.leasing.MarkAccountClean(ctx, awsAccountID, execution)
}

func (d *Daemon) handleAccountGet(ctx context.Context, raw []byte) (any, error) {
	var req accountRequest
	if err := codec.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	awsAccountID, err := req.id()
	if err != nil {
		return nil, err
	}
	return d.leasing.GetAccount(ctx, awsAccountID)
}

func (d *Daemon) handleAccountList(ctx context.Context, raw []byte) (any, error) {
	var req struct {
		Statuses []string `json:"statuses"`
	}
	if err := codec.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	statuses := make([]schema.AccountStatus, len(req.Statuses))
	for i, status := range req.Statuses {
		statuses[i] = schema.AccountStatus(status)
	}
	return d.leasing.ListAccounts(ctx, statuses...)
}

func (d *Daemon) handleAccountEject(ctx context.Context, raw []byte) (any, error) {
	var req accountRequest
	if err := codec.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	awsAccountID, err := req.id()
	if err != nil {
		return nil, err
	}
	if err := d.leasing.EjectAccount(ctx, awsAccountID); err != nil {
		return nil, err
	}
	return map[string]any{"ejected": awsAccountID}, nil
}

func (d *Daemon) handleAccountQuarantine(ctx context.Context, raw []byte) (any, error) {
	var req struct {
		accountRequest
		Reason string `json:"reason"`
	}
	if err := codec.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	awsAccountID, err := req.id()
	if err != nil {
		return nil, err
	}
	return d.leasing.QuarantineAccount(ctx, awsAccountID, req.Reason)
}

func (d *Daemon) handleAccountRecycle(ctx context.Context, raw []byte) (any, error) {
	var req accountRequest
	if err := codec.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	awsAccountID, err := req.id()
	if err != nil {
		return nil, err
	}
	return d.leasing.RecycleAccount(ctx, awsAccountID)
}

func (d *Daemon) handleTemplateCreate(ctx context.Context, raw []byte) (any, error) {
	var req struct {
		Template schema.LeaseTemplate `json:"template"`
	}
	if err := codec.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	return d.leasing.CreateTemplate(ctx, &req.Template)
}

func (d *Daemon) handleTemplateGet(ctx context.Context, raw []byte) (any, error) {
	var req struct {
		UUID string `json:"uuid"`
	}
	if err := codec.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	if req.UUID == "" {
		return nil, fmt.Errorf("uuid is required")
	}
	return d.leasing.GetTemplate(ctx, req.UUID)
}

func (d *Daemon) handleTemplateList(ctx context.Context, raw []byte) (any, error) {
	return d.leasing.ListTemplates(ctx)
}

func (d *Daemon) handleTemplateDelete(ctx context.Context, raw []byte) (any, error) {
	var req struct {
		UUID string `json:"uuid"`
	}
	if err := codec.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	if req.UUID == "" {
		return nil, fmt.Errorf("uuid is required")
	}
	if err := d.leasing.DeleteTemplate(ctx, req.UUID); err != nil {
		return nil, err
	}
	return map[string]any{"deleted": req.UUID}, nil
}
