package personalctx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

type stubRepository struct {
	bundle *Bundle
	err    error
	calls  int
}

func (s *stubRepository) FetchBundle(ctx context.Context, patientID string) (*Bundle, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.bundle, nil
}

func TestFetchCachesWithinTTL(t *testing.T) {
	repo := &stubRepository{bundle: &Bundle{Name: "Amina", Prescriptions: []Prescription{{Name: "Ferrous sulfate"}}}}
	fetcher := NewCachedFetcher(repo, 2*time.Minute, logging.Default())

	first := fetcher.Fetch(context.Background(), "pat-1")
	second := fetcher.Fetch(context.Background(), "pat-1")
	if repo.calls != 1 {
		t.Fatalf("expected one repository call, got %d", repo.calls)
	}
	if first.Name != "Amina" || second.Name != "Amina" {
		t.Fatalf("unexpected bundles: %+v / %+v", first, second)
	}
}

func TestFetchRefreshesAfterTTL(t *testing.T) {
	repo := &stubRepository{bundle: &Bundle{Name: "Amina"}}
	fetcher := NewCachedFetcher(repo, 2*time.Minute, logging.Default())

	current := time.Now()
	fetcher.now = func() time.Time { return current }

	fetcher.Fetch(context.Background(), "pat-1")
	current = current.Add(3 * time.Minute)
	fetcher.Fetch(context.Background(), "pat-1")
	if repo.calls != 2 {
		t.Fatalf("expected refetch after TTL, got %d calls", repo.calls)
	}
}

func TestFetchCachesFailuresNegatively(t *testing.T) {
	repo := &stubRepository{err: errors.New("db down")}
	fetcher := NewCachedFetcher(repo, 2*time.Minute, logging.Default())

	first := fetcher.Fetch(context.Background(), "pat-1")
	second := fetcher.Fetch(context.Background(), "pat-1")
	if repo.calls != 1 {
		t.Fatalf("expected failure to be cached, got %d calls", repo.calls)
	}
	if first == nil || len(first.Prescriptions) != 0 || second == nil {
		t.Fatalf("expected empty bundles, got %+v / %+v", first, second)
	}
}

func TestFetchKeysPerPatient(t *testing.T) {
	repo := &stubRepository{bundle: &Bundle{Name: "Amina"}}
	fetcher := NewCachedFetcher(repo, 2*time.Minute, logging.Default())

	fetcher.Fetch(context.Background(), "pat-1")
	fetcher.Fetch(context.Background(), "pat-2")
	if repo.calls != 2 {
		t.Fatalf("expected per-patient entries, got %d calls", repo.calls)
	}
}
