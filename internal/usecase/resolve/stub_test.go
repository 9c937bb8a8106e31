package resolve_test

import (
	"context"

	"notification-prep/internal/domain/entity"
)

/*────────────────────  in-memory stubs  ────────────────────*/

type stubEventMaps struct {
	maps    map[string]*entity.EventMap
	stubs   int
	err     error
	stubErr error
}

func (s *stubEventMaps) Get(_ context.Context, tenantID, eventID string) (*entity.EventMap, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.maps[tenantID+"/"+eventID], nil
}

func (s *stubEventMaps) CreateStub(_ context.Context, tenantID, eventID string) (bool, error) {
	if s.stubErr != nil {
		return false, s.stubErr
	}
	key := tenantID + "/" + eventID
	if _, ok := s.maps[key]; ok {
		return false, nil
	}
	if s.maps == nil {
		s.maps = map[string]*entity.EventMap{}
	}
	s.maps[key] = &entity.EventMap{TenantID: tenantID, EventID: eventID}
	s.stubs++
	return true, nil
}

type stubNotifications struct {
	published map[string]*entity.Notification
	drafts    map[string]*entity.Notification
	err       error
}

func (s *stubNotifications) GetPublished(_ context.Context, _, id string) (*entity.Notification, error) {
	return s.published[id], s.err
}

func (s *stubNotifications) GetLatestDraft(_ context.Context, _, id string) (*entity.Notification, error) {
	return s.drafts[id], s.err
}

type stubBrands struct {
	published map[string]*entity.Brand
	latest    map[string]*entity.Brand
	defaultID string
	calls     []string
	err       error
}

func (s *stubBrands) GetPublished(_ context.Context, _, id string) (*entity.Brand, error) {
	s.calls = append(s.calls, "published:"+id)
	return s.published[id], s.err
}

func (s *stubBrands) GetLatest(_ context.Context, _, id string) (*entity.Brand, error) {
	s.calls = append(s.calls, "latest:"+id)
	return s.latest[id], s.err
}

func (s *stubBrands) GetDefaultID(_ context.Context, _ string) (string, error) {
	return s.defaultID, s.err
}
