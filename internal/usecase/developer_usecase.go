package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/MentorCall/internal/availability"
	"github.com/qrave1/MentorCall/internal/domain/apperr"
	"github.com/qrave1/MentorCall/internal/domain/input"
	"github.com/qrave1/MentorCall/internal/domain/models"
	"github.com/qrave1/MentorCall/internal/infra/adapters/postgres/repository"
)

type DeveloperUsecase interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.DeveloperProfile, error)
	// UpdateProfile - единственный способ поменять рабочие часы
	UpdateProfile(ctx context.Context, in *input.UpdateDeveloperProfileInput) (*models.DeveloperProfile, error)
}

type developerUsecase struct {
	userRepo      repository.UserRepository
	developerRepo repository.DeveloperRepository
}

func NewDeveloperUsecase(userRepo repository.UserRepository, developerRepo repository.DeveloperRepository) DeveloperUsecase {
	return &developerUsecase{userRepo: userRepo, developerRepo: developerRepo}
}

func (uc *developerUsecase) GetProfile(ctx context.Context, userID uuid.UUID) (*models.DeveloperProfile, error) {
	return uc.developerRepo.GetProfile(ctx, userID)
}

func (uc *developerUsecase) UpdateProfile(ctx context.Context, in *input.UpdateDeveloperProfileInput) (*models.DeveloperProfile, error) {
	user, err := uc.userRepo.GetUserByID(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user.Role != models.RoleDeveloper {
		return nil, fmt.Errorf("only developers have profiles: %w", apperr.ErrForbidden)
	}

	if _, err = availability.ParseWorkingHours(in.WorkingHours.From, in.WorkingHours.To); err != nil {
		return nil, fmt.Errorf("validate working hours: %w: %w", apperr.ErrInvalidInput, err)
	}

	if in.HourlyRate < 0 {
		return nil, fmt.Errorf("hourly rate must not be negative: %w", apperr.ErrInvalidInput)
	}

	profile := &models.DeveloperProfile{
		UserID:     in.UserID,
		HourlyRate: in.HourlyRate,
		UpdatedAt:  time.Now(),
	}
	profile.SetWorkingHours(in.WorkingHours)

	if err = uc.developerRepo.UpsertProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("save developer profile: %w", err)
	}

	return profile, nil
}
