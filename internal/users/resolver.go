package users

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/receivr-io/receivr/internal/database"
	"github.com/receivr-io/receivr/internal/models"
	"github.com/receivr-io/receivr/internal/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/receivr-io/receivr/internal/users")

// ErrNoSubject is returned when the request carries no verified subject.
var ErrNoSubject = errors.New("no authenticated subject")

// Resolver maps the subject verified by the upstream identity provider to a user id,
// creating the user on first sight.
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

func (r *Resolver) ResolveCaller(ctx context.Context, subject string) (uuid.UUID, error) {
	if subject == "" {
		return uuid.Nil, ErrNoSubject
	}
	ctx, span := tracer.Start(ctx, "ResolveCaller", trace.WithAttributes(
		attribute.String("idp_id", subject),
	))
	defer span.End()

	var user models.User
	// concurrent first requests of one subject race on the idp_id unique index; the loser reads the winner's row
	err := util.RetryOperation(ctx, 10*time.Millisecond, 1, func() error {
		db := r.db.WithContext(ctx)
		res := db.First(&user, "idp_id = ?", subject)
		if res.Error == nil {
			return nil
		}
		if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return backoff.Permanent(res.Error)
		}
		user = models.User{
			ID:       uuid.New(),
			IdpID:    subject,
			UserName: subject,
		}
		if res := db.Create(&user); res.Error != nil {
			if database.IsDuplicateError(res.Error) {
				return gorm.ErrDuplicatedKey
			}
			return backoff.Permanent(res.Error)
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return user.ID, nil
}
