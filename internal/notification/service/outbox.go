package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolride/internal/clock"
	"github.com/smallbiznis/schoolride/internal/notification/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type OutboxParams struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Outbox struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewOutbox(p OutboxParams) *Outbox {
	return &Outbox{
		log:   p.Log.Named("notification.outbox"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (o *Outbox) Enqueue(ctx context.Context, tx *gorm.DB, kind domain.Kind, subjectID snowflake.ID, payload any) (bool, error) {
	if !kind.Valid() {
		return false, domain.ErrInvalidKind
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	n := domain.Notification{
		ID:        o.genID.Generate(),
		Kind:      kind,
		SubjectID: subjectID,
		Status:    domain.StatusPending,
		Payload:   datatypes.JSON(body),
		CreatedAt: o.clock.Now(),
	}
	inserted, err := o.repo.Insert(ctx, tx, &n)
	if err != nil {
		return false, fmt.Errorf("enqueue %s for %s: %w", kind, subjectID, err)
	}
	if inserted {
		o.log.Debug("notification enqueued",
			zap.String("kind", string(kind)),
			zap.String("subject_id", subjectID.String()),
		)
	}
	return inserted, nil
}
