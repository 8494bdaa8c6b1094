package merge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"servio/internal/identity/metrics"
	"servio/internal/identity/models"
	id "servio/pkg/domain"
	dErrors "servio/pkg/domain-errors"
	audit "servio/pkg/platform/audit"
	"servio/pkg/platform/sentinel"
	"servio/pkg/requestcontext"
)

// IdentityStore is the identity-row port the coordinator needs. FindForUpdate
// must lock the row for the duration of the surrounding transaction.
type IdentityStore interface {
	FindForUpdate(ctx context.Context, identityID id.IdentityID) (*models.Identity, error)
	ApplyPatch(ctx context.Context, identityID id.IdentityID, patch models.IdentityPatch) error
	Delete(ctx context.Context, identityID id.IdentityID) error
}

// AuditPublisher records merge events. The postgres-backed publisher joins the
// merge transaction through the context.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// SessionInvalidator drops cached session state for an identity after a merge
// commits. Failures are logged, never surfaced: the cache is advisory.
type SessionInvalidator interface {
	Invalidate(ctx context.Context, identityID id.IdentityID) error
}

// Result reports a completed merge.
type Result struct {
	SurvivorID id.IdentityID
	LoserID    id.IdentityID
	Outcomes   []Outcome
}

// Service is the merge coordinator. It owns nothing but orchestration: target
// selection, field reconciliation, relation migration, and loser deletion all
// happen inside one transaction supplied by tx.
type Service struct {
	tx         Tx
	identities IdentityStore
	migrator   *Migrator
	auditor    AuditPublisher
	sessions   SessionInvalidator
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewService wires the coordinator. auditor, sessions, and metrics may be nil
// in tests; logger must not be.
func NewService(tx Tx, identities IdentityStore, migrator *Migrator, auditor AuditPublisher, sessions SessionInvalidator, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		tx:         tx,
		identities: identities,
		migrator:   migrator,
		auditor:    auditor,
		sessions:   sessions,
		logger:     logger,
		metrics:    m,
	}
}

// Merge folds identity b's records into identity a's (or vice versa; the
// selector decides) and deletes the loser. Either the survivor owns everything
// afterwards or nothing changed.
//
// Failures:
//   - not_found: either ID does not resolve to an identity
//   - bad_request: the two IDs are equal (a no-op is not a successful merge)
//   - internal_error: the transaction could not commit, including uniqueness
//     conflicts the resolver did not anticipate; safe to retry from scratch
func (s *Service) Merge(ctx context.Context, identityA, identityB id.IdentityID) (*Result, error) {
	if identityA.IsNil() || identityB.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "both identity IDs are required")
	}
	if identityA == identityB {
		return nil, dErrors.New(dErrors.CodeBadRequest, "cannot merge an identity with itself")
	}

	ctx, span := otel.Tracer("servio/identity").Start(ctx, "identity.merge",
		trace.WithAttributes(
			attribute.String("identity.a", identityA.String()),
			attribute.String("identity.b", identityB.String()),
		))
	defer span.End()

	start := time.Now()
	var result *Result

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		// Lock both rows in ascending-ID order so concurrent merges sharing an
		// identity serialize instead of deadlocking.
		first, second := identityA, identityB
		if second.Compare(first) < 0 {
			first, second = second, first
		}

		firstRec, err := s.loadLocked(ctx, first)
		if err != nil {
			return err
		}
		secondRec, err := s.loadLocked(ctx, second)
		if err != nil {
			return err
		}

		survivor, loser := SelectSurvivor(firstRec, secondRec)

		if patch := ReconcileFields(survivor, loser); !patch.IsEmpty() {
			if err := s.identities.ApplyPatch(ctx, survivor.ID, patch); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reconcile identity fields")
			}
		}

		outcomes, err := s.migrator.Migrate(ctx, survivor.ID, loser.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "relation migration failed")
		}

		if err := s.identities.Delete(ctx, loser.ID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete merged identity")
		}

		result = &Result{SurvivorID: survivor.ID, LoserID: loser.ID, Outcomes: outcomes}

		// Audit rows ride the same transaction as the merge itself.
		s.logAudit(ctx, audit.EventIdentityDeleted, loser.ID, result, "")
		s.logAudit(ctx, audit.EventIdentitiesMerged, survivor.ID, result, "")
		return nil
	})
	if err != nil {
		s.metrics.RecordMerge("failure", time.Since(start))
		span.RecordError(err)
		// Best-effort operational trace; the transaction is already gone.
		s.logAudit(ctx, audit.EventMergeFailed, identityA,
			&Result{SurvivorID: identityA, LoserID: identityB}, err.Error())
		if dErrors.HasCode(err, dErrors.CodeNotFound) || dErrors.HasCode(err, dErrors.CodeBadRequest) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "merge transaction failed")
	}

	s.afterCommit(ctx, result)
	s.metrics.RecordMerge("success", time.Since(start))
	span.SetAttributes(attribute.String("identity.survivor", result.SurvivorID.String()))
	return result, nil
}

func (s *Service) loadLocked(ctx context.Context, identityID id.IdentityID) (*models.Identity, error) {
	rec, err := s.identities.FindForUpdate(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "identity %s not found", identityID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	return rec, nil
}

// afterCommit runs best-effort side effects that must not undo a committed merge.
func (s *Service) afterCommit(ctx context.Context, result *Result) {
	if s.sessions != nil {
		if err := s.sessions.Invalidate(ctx, result.LoserID); err != nil {
			s.logger.WarnContext(ctx, "session cache invalidation failed",
				"identity_id", result.LoserID.String(),
				"error", err,
			)
		}
	}

	repointed, dropped := 0, 0
	for _, out := range result.Outcomes {
		s.metrics.RecordRows(out.Relation, out.Repointed, out.Dropped)
		repointed += out.Repointed
		dropped += out.Dropped
	}

	s.logger.InfoContext(ctx, "identities merged",
		"request_id", requestcontext.RequestID(ctx),
		"survivor_id", result.SurvivorID.String(),
		"loser_id", result.LoserID.String(),
		"rows_repointed", repointed,
		"rows_dropped", dropped,
	)
}

func (s *Service) logAudit(ctx context.Context, action audit.AuditEvent, subject id.IdentityID, result *Result, reason string) {
	if s.auditor == nil {
		return
	}
	event := audit.Event{
		Category:   action.Category(),
		Timestamp:  requestcontext.Now(ctx),
		IdentityID: subject,
		Action:     string(action),
		Reason:     reason,
		RequestID:  requestcontext.RequestID(ctx),
		ActorID:    requestcontext.ActorID(ctx),
		SurvivorID: result.SurvivorID.String(),
		LoserID:    result.LoserID.String(),
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "action", string(action), "error", err)
	}
}
