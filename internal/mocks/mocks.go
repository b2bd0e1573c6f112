package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/api"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/models"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/session"
)

type HistoryFetcherMock struct {
	mock.Mock
}

func (m *HistoryFetcherMock) ChatHistory(ctx context.Context, userID, friendID string, page int) (api.HistoryPage, error) {
	args := m.Called(ctx, userID, friendID, page)
	var result api.HistoryPage
	if val := args.Get(0); val != nil {
		result = val.(api.HistoryPage)
	}
	return result, args.Error(1)
}

type ProfileFetcherMock struct {
	mock.Mock
}

func (m *ProfileFetcherMock) FetchProfile(ctx context.Context) (models.Profile, error) {
	args := m.Called(ctx)
	var profile models.Profile
	if val := args.Get(0); val != nil {
		profile = val.(models.Profile)
	}
	return profile, args.Error(1)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ session.ProfileFetcher = (*ProfileFetcherMock)(nil)
