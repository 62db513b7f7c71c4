package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/n0P7xJ/MyReactNative/internal/repository"
)

const seedPassword = "Test@123"

// Seed creates two test users and a private conversation between them when
// no users exist yet.
func Seed(ctx context.Context, users repository.UserRepository, auth *AuthService, convs *ConversationService) error {
	n, err := users.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if n > 0 {
		log.Info("seed data already present")
		return nil
	}

	first, err := auth.Register(ctx, RegisterInput{
		FirstName: "Test",
		LastName:  "User 1",
		Email:     "test1@example.com",
		Phone:     "+380971234567",
		Password:  seedPassword,
	})
	if err != nil {
		return fmt.Errorf("seeding first user: %w", err)
	}
	second, err := auth.Register(ctx, RegisterInput{
		FirstName: "Test",
		LastName:  "User 2",
		Email:     "test2@example.com",
		Phone:     "+380971234568",
		Password:  seedPassword,
	})
	if err != nil {
		return fmt.Errorf("seeding second user: %w", err)
	}

	conv, err := convs.Create(ctx, CreateConversationInput{
		CreatedByID:    first.ID,
		ParticipantIDs: []uuid.UUID{second.ID},
	})
	if err != nil {
		return fmt.Errorf("seeding conversation: %w", err)
	}

	log.Infof("seeded users %s, %s and conversation %s", first.Email, second.Email, conv.ID)
	return nil
}
