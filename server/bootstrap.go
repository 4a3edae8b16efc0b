package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-class-attendance/access"
	"github.com/jrsteele09/go-class-attendance/authn"
	"github.com/jrsteele09/go-class-attendance/classes"
	"github.com/jrsteele09/go-class-attendance/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// Development fixtures
	DevTutorAccountID = "dev-tutor"
	DevTutorProfileID = "dev-tutor-profile"
	DevStudentID      = "dev-student"
	DevParentID       = "dev-parent"
	DevClassID        = "dev-class"

	devTokenTTL = 12 * time.Hour
)

// DevFixtures is what BootstrapDevData seeded, with a bearer token per actor.
type DevFixtures struct {
	ClassID      string
	TutorToken   string
	StudentToken string
	ParentToken  string
}

// BootstrapDevData seeds one tutor, one student with a guardian, and a scheduled class
// between them. Re-running it is harmless: accounts are upserted and an existing class
// is left as it is.
func BootstrapDevData(ctx context.Context, classRepo classes.Repo, userRepo users.Repo, tokens *authn.HMACAuthenticator) (*DevFixtures, error) {
	log.Info().Msg("🔧 Bootstrap: seeding development data...")

	for _, account := range []*users.Account{
		{ID: DevTutorAccountID, Email: "tutor@dev.local", DisplayName: "Dev Tutor", Role: users.RoleTutor},
		{ID: DevStudentID, Email: "student@dev.local", DisplayName: "Dev Student", Role: users.RoleStudent},
		{ID: DevParentID, Email: "parent@dev.local", DisplayName: "Dev Parent", Role: users.RoleParent},
	} {
		if err := userRepo.UpsertAccount(ctx, account); err != nil {
			return nil, fmt.Errorf("failed to bootstrap account %s: %w", account.ID, err)
		}
	}
	if err := userRepo.UpsertTutorProfile(ctx, &users.TutorProfile{ID: DevTutorProfileID, AccountID: DevTutorAccountID}); err != nil {
		return nil, fmt.Errorf("failed to bootstrap tutor profile: %w", err)
	}
	if err := userRepo.UpsertStudent(ctx, &users.Student{ID: DevStudentID, GuardianID: DevParentID}); err != nil {
		return nil, fmt.Errorf("failed to bootstrap student: %w", err)
	}

	if _, err := classRepo.Get(ctx, DevClassID); errors.Is(err, classes.ErrNotFound) {
		err = classRepo.Create(ctx, &classes.ClassSession{
			ID:          DevClassID,
			TutorID:     DevTutorProfileID,
			StudentID:   DevStudentID,
			ScheduledAt: time.Now().UTC().Add(time.Hour).Truncate(time.Minute),
			Status:      classes.StatusScheduled,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to bootstrap class: %w", err)
		}
		log.Info().Str("class_id", DevClassID).Msg("   ✅ Created scheduled class")
	} else if err != nil {
		return nil, fmt.Errorf("failed to look up dev class: %w", err)
	} else {
		log.Info().Str("class_id", DevClassID).Msg("   Dev class already exists")
	}

	fixtures := &DevFixtures{ClassID: DevClassID}
	for _, t := range []struct {
		actor access.Actor
		dst   *string
	}{
		{access.Actor{ID: DevTutorAccountID, Role: users.RoleTutor}, &fixtures.TutorToken},
		{access.Actor{ID: DevStudentID, Role: users.RoleStudent}, &fixtures.StudentToken},
		{access.Actor{ID: DevParentID, Role: users.RoleParent}, &fixtures.ParentToken},
	} {
		raw, err := tokens.CreateToken(t.actor, devTokenTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to create dev token: %w", err)
		}
		*t.dst = raw
	}

	log.Info().Msg("✅ Bootstrap complete")
	log.Info().Msgf("👤 Tutor token:   %s", fixtures.TutorToken)
	log.Info().Msgf("👤 Student token: %s", fixtures.StudentToken)
	log.Info().Msgf("👤 Parent token:  %s", fixtures.ParentToken)
	return fixtures, nil
}
