// Package gateway implements the tracking access state machine: verify the
// instance, verify the hash, resolve the target, and record the outcome
// exactly once per request.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"LinkTrace-Backend/internal/domain"
	"LinkTrace-Backend/internal/repository"
	"LinkTrace-Backend/internal/signer"
	"LinkTrace-Backend/internal/target"
)

// ErrNotFound is returned for requests that must not reveal whether the
// instance exists: unknown identifiers and failed hash checks both map to it.
var ErrNotFound = errors.New("tracking resource not found")

// Meta carries request metadata attached to the recorded access.
type Meta struct {
	IPAddress  *string
	UserAgent  *string
	Referer    *string
	DeviceType *string
}

// Gateway ties instance lookup, hash verification, target dispatch and
// access recording together.
type Gateway struct {
	storage repository.Storage
	signer  *signer.Signer
	targets *target.Table
	log     *zap.Logger
}

// New creates a gateway over the given storage, signer and dispatch table.
func New(storage repository.Storage, s *signer.Signer, targets *target.Table, log *zap.Logger) *Gateway {
	return &Gateway{
		storage: storage,
		signer:  s,
		targets: targets,
		log:     log,
	}
}

// HandleAccess processes one inbound tracking request. Exactly one access
// row is recorded no matter which way the request goes:
//
//   - unknown uuid: failure_uuid against the sentinel instance, ErrNotFound
//   - bad hash: failure_hash against the real instance, ErrNotFound
//   - unresolvable tail or failing resolver: error_targetview, error returned
//   - error response from the resolver: error_targetview, response returned
//   - everything else: success, response returned
//
// Verification failures carry no access time; only verified accesses are
// timestamped and counted in aggregates.
func (g *Gateway) HandleAccess(ctx context.Context, hash, uuid, tail, rawURL string, meta Meta) (*target.Response, error) {
	instance, err := g.storage.GetInstanceByUUID(ctx, uuid)
	if err != nil {
		if errors.Is(err, repository.ErrInstanceNotFound) {
			g.recordOnSentinel(ctx, domain.ResultFailureUUID, nil, rawURL, meta)
			return nil, fmt.Errorf("%w: unknown instance", ErrNotFound)
		}
		g.recordOnSentinel(ctx, domain.ResultFailureUUID, nil, rawURL, meta)
		return nil, fmt.Errorf("failed to look up instance: %w", err)
	}

	normalized := target.NormalizeTail(tail)
	if !g.signer.Verify(uuid, normalized, hash) {
		g.record(ctx, instance.ID, domain.ResultFailureHash, nil, rawURL, meta)
		return nil, fmt.Errorf("%w: hash mismatch", ErrNotFound)
	}

	now := time.Now().UTC()

	handler, params, err := g.targets.Resolve(tail)
	if err != nil {
		g.record(ctx, instance.ID, domain.ResultErrorTarget, &now, rawURL, meta)
		return nil, fmt.Errorf("failed to resolve target: %w", err)
	}

	resp, err := handler(ctx, &target.Request{UUID: uuid, Params: params})
	if err != nil {
		g.record(ctx, instance.ID, domain.ResultErrorTarget, &now, rawURL, meta)
		return nil, fmt.Errorf("target resolver failed: %w", err)
	}

	if resp.IsError() {
		g.record(ctx, instance.ID, domain.ResultErrorTarget, &now, rawURL, meta)
		return resp, nil
	}

	g.record(ctx, instance.ID, domain.ResultSuccess, &now, rawURL, meta)
	return resp, nil
}

// record appends one access row. Recording is best effort: a storage failure
// here must not turn an otherwise served request into an error.
func (g *Gateway) record(ctx context.Context, instanceID int64, result domain.AccessResult, when *time.Time, rawURL string, meta Meta) {
	access := &domain.Access{
		InstanceID: instanceID,
		Time:       when,
		Result:     result,
		URL:        rawURL,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Referer:    meta.Referer,
		DeviceType: meta.DeviceType,
	}
	if err := g.storage.AppendAccess(ctx, access); err != nil {
		g.log.Error("failed to record access",
			zap.Int64("instance_id", instanceID),
			zap.String("result", string(result)),
			zap.Error(err))
	}
}

// recordOnSentinel records against the catch-all unknown instance, used when
// no real instance can be attributed.
func (g *Gateway) recordOnSentinel(ctx context.Context, result domain.AccessResult, when *time.Time, rawURL string, meta Meta) {
	sentinel, err := g.storage.UnknownInstance(ctx)
	if err != nil {
		g.log.Error("failed to resolve sentinel instance", zap.Error(err))
		return
	}
	g.record(ctx, sentinel.ID, result, when, rawURL, meta)
}
