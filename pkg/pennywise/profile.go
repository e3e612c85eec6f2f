package pennywise

import (
	"context"
	"sync"

	pkgerrors "github.com/pkg/errors"
)

// profileService implements the ProfileService interface
type profileService struct {
	client *Client

	mu      sync.RWMutex
	profile *UserProfile
}

// Ensure gets or creates the signed-in user's profile
func (s *profileService) Ensure(ctx context.Context) (*UserProfile, error) {
	var profile *UserProfile
	err := s.client.execute(ctx, "profile.ensure", func(ctx context.Context) error {
		var err error
		profile, err = s.client.adapter.EnsureUserProfile(ctx)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to ensure user profile")
	}

	s.mu.Lock()
	s.profile = profile
	s.mu.Unlock()

	out := *profile
	return &out, nil
}

// Update changes display preferences
func (s *profileService) Update(ctx context.Context, params *UpdateProfileParams) (*UserProfile, error) {
	if err := params.Validate(); err != nil {
		s.client.notifier.Failure("Failed to update profile", err)
		return nil, err
	}

	var profile *UserProfile
	err := s.client.execute(ctx, "profile.update", func(ctx context.Context) error {
		var err error
		profile, err = s.client.adapter.UpdateUserProfile(ctx, params)
		return err
	})
	if err != nil {
		s.client.notifier.Failure("Failed to update profile", err)
		return nil, pkgerrors.Wrap(err, "failed to update profile")
	}

	s.mu.Lock()
	s.profile = profile
	s.mu.Unlock()

	s.client.notifier.Success("Profile updated successfully")
	out := *profile
	return &out, nil
}

// Current returns the cached profile, or nil before Ensure
func (s *profileService) Current() *UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil
	}
	out := *s.profile
	return &out
}

// DeleteAllData removes every row the user owns and clears local state
func (s *profileService) DeleteAllData(ctx context.Context) error {
	release, err := s.client.guard.acquire("user", "delete_data", "")
	if err != nil {
		s.client.notifier.Failure("Failed to delete user data", err)
		return err
	}
	defer release()

	err = s.client.execute(ctx, "profile.delete_data", func(ctx context.Context) error {
		return s.client.adapter.DeleteUserData(ctx)
	})
	if err != nil {
		s.client.notifier.Failure("Failed to delete user data", err)
		return pkgerrors.Wrap(err, "failed to delete user data")
	}

	s.client.Transactions.Reset()
	s.client.Budgets.Reset()
	s.client.Savings.Reset()

	s.client.notifier.Success("All data deleted successfully")
	return nil
}

func (s *profileService) reset() {
	s.mu.Lock()
	s.profile = nil
	s.mu.Unlock()
}

// Currency returns the profile currency or the default
func (s *profileService) currency() string {
	if p := s.Current(); p != nil && p.Currency != "" {
		return p.Currency
	}
	return DefaultCurrency
}
