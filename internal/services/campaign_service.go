package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/viewpledge/backend/internal/models"
	"github.com/viewpledge/backend/internal/repositories"
)

// CampaignService covers the operator-facing campaign lifecycle up to the
// charge run: create, lock with the measured view count, inspect pledges.
type CampaignService struct {
	campaigns CampaignStore
	pledges   PledgeStore
	log       *zap.Logger
}

func NewCampaignService(campaigns CampaignStore, pledges PledgeStore, log *zap.Logger) *CampaignService {
	return &CampaignService{campaigns: campaigns, pledges: pledges, log: log}
}

func (s *CampaignService) Create(ctx context.Context, title string, viewsCap int64) (*models.Campaign, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if viewsCap <= 0 {
		viewsCap = models.DefaultViewsCap
	}

	campaign := &models.Campaign{
		Title:    title,
		ViewsCap: viewsCap,
		Status:   models.CampaignStatusOpen,
	}
	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, err
	}

	s.log.Info("campaign created",
		zap.String("campaign_id", campaign.ID.String()),
		zap.Int64("views_cap", viewsCap),
	)
	return campaign, nil
}

// Lock records the final measured view count and closes the campaign to new
// pledges. final_views is write-once: locking anything but an open campaign
// is rejected.
func (s *CampaignService) Lock(ctx context.Context, id uuid.UUID, finalViews int64) (*models.Campaign, error) {
	if finalViews < 0 {
		return nil, fmt.Errorf("final views must be non-negative")
	}

	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	if !models.IsValidCampaignTransition(campaign.Status, models.CampaignStatusLocked) {
		return nil, ErrCampaignNotLocked
	}

	if err := s.campaigns.SetFinalViews(ctx, id, finalViews); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// Lost the race against another lock; the guard held.
			return nil, ErrCampaignNotLocked
		}
		return nil, err
	}

	campaign.FinalViews = &finalViews
	campaign.Status = models.CampaignStatusLocked

	s.log.Info("campaign locked",
		zap.String("campaign_id", id.String()),
		zap.Int64("final_views", finalViews),
	)
	return campaign, nil
}

func (s *CampaignService) Get(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return campaign, nil
}

func (s *CampaignService) List(ctx context.Context) ([]models.Campaign, error) {
	return s.campaigns.List(ctx)
}

func (s *CampaignService) ListPledges(ctx context.Context, campaignID uuid.UUID) ([]models.Pledge, error) {
	if _, err := s.Get(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.pledges.ListByCampaign(ctx, campaignID)
}
