package edd

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeETA struct {
	eta   time.Time
	err   error
	calls int
}

func (f *fakeETA) EstimateDelivery(ctx context.Context, pincode string) (time.Time, error) {
	f.calls++
	return f.eta, f.err
}

type fakeGeo struct {
	district string
	err      error
	calls    int
}

func (f *fakeGeo) District(ctx context.Context, pincode string) (string, error) {
	f.calls++
	return f.district, f.err
}

type memCache struct {
	m map[string][]byte
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, ok := c.m[key]
	return b, ok, nil
}
func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.m[key] = value
	return nil
}

var testNow = time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

func TestEstimate_ValidPincodeTwoDayBand(t *testing.T) {
	bd := &fakeETA{eta: time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)}
	s := New(bd, nil, &fakeGeo{district: "Mumbai"}, nil, 0, nil).
		WithClock(func() time.Time { return testNow })

	est := s.Estimate(context.Background(), "400099")
	require.NotNil(t, est.EDD)
	require.Equal(t, "25-AUG-26–26-AUG-26", *est.EDD)
	require.NotNil(t, est.City)
	require.Equal(t, "Mumbai", *est.City)
	require.Equal(t, BadgeMetroExpress, est.Badge)
}

func TestEstimate_InvalidPincodeSkipsCarriers(t *testing.T) {
	bd := &fakeETA{eta: testNow}
	sr := &fakeETA{eta: testNow}
	geo := &fakeGeo{district: "Mumbai"}
	s := New(bd, sr, geo, nil, 0, nil)

	for _, pin := range []string{"ABC", "12345", "1234567", "40009x", ""} {
		est := s.Estimate(context.Background(), pin)
		require.Nil(t, est.EDD, "pincode %q", pin)
	}
	require.Zero(t, bd.calls)
	require.Zero(t, sr.calls)
	require.Zero(t, geo.calls)
}

func TestEstimate_FallbackToShiprocket(t *testing.T) {
	bd := &fakeETA{err: errors.New("bluedart down")}
	sr := &fakeETA{eta: time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)}
	s := New(bd, sr, nil, nil, 0, nil).
		WithClock(func() time.Time { return testNow })

	est := s.Estimate(context.Background(), "560001")
	require.NotNil(t, est.EDD)
	require.Equal(t, "27-AUG-26–28-AUG-26", *est.EDD)
	require.Equal(t, 1, bd.calls)
	require.Equal(t, 1, sr.calls)
}

func TestEstimate_PrimaryWinsNoMerge(t *testing.T) {
	bd := &fakeETA{eta: time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)}
	sr := &fakeETA{eta: time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)}
	s := New(bd, sr, nil, nil, 0, nil).
		WithClock(func() time.Time { return testNow })

	est := s.Estimate(context.Background(), "560001")
	require.NotNil(t, est.EDD)
	require.Equal(t, "25-AUG-26–26-AUG-26", *est.EDD)
	require.Zero(t, sr.calls)
}

func TestEstimate_BothSourcesDown(t *testing.T) {
	bd := &fakeETA{err: errors.New("down")}
	sr := &fakeETA{err: errors.New("down")}
	s := New(bd, sr, &fakeGeo{district: "Indore"}, nil, 0, nil)

	est := s.Estimate(context.Background(), "452001")
	require.Nil(t, est.EDD)
	require.NotNil(t, est.City)
}

func TestEstimate_GeoFailureTolerated(t *testing.T) {
	bd := &fakeETA{eta: time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)}
	s := New(bd, nil, &fakeGeo{err: errors.New("geo down")}, nil, 0, nil).
		WithClock(func() time.Time { return testNow })

	est := s.Estimate(context.Background(), "400099")
	require.NotNil(t, est.EDD)
	require.Nil(t, est.City)
	require.Equal(t, BadgeExpress, est.Badge)
}

func TestEstimate_NonMetroBadge(t *testing.T) {
	bd := &fakeETA{eta: time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)}
	s := New(bd, nil, &fakeGeo{district: "Dharwad"}, nil, 0, nil).
		WithClock(func() time.Time { return testNow })

	est := s.Estimate(context.Background(), "580001")
	require.Equal(t, BadgeExpress, est.Badge)
}

func TestEstimate_MetroMatchIsSubstringCaseInsensitive(t *testing.T) {
	bd := &fakeETA{eta: time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)}
	s := New(bd, nil, &fakeGeo{district: "NEW DELHI"}, nil, 0, nil).
		WithClock(func() time.Time { return testNow })

	est := s.Estimate(context.Background(), "110001")
	require.Equal(t, BadgeMetroExpress, est.Badge)
}

func TestEstimate_CacheHitSkipsLookups(t *testing.T) {
	bd := &fakeETA{eta: time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)}
	geo := &fakeGeo{district: "Mumbai"}
	c := &memCache{m: map[string][]byte{}}
	s := New(bd, nil, geo, c, time.Hour, nil).
		WithClock(func() time.Time { return testNow })

	first := s.Estimate(context.Background(), "400099")
	require.NotNil(t, first.EDD)
	require.Equal(t, 1, bd.calls)

	second := s.Estimate(context.Background(), "400099")
	require.NotNil(t, second.EDD)
	require.Equal(t, *first.EDD, *second.EDD)
	require.Equal(t, 1, bd.calls)
	require.Equal(t, 1, geo.calls)
}

func TestEstimate_StaleQuoteShiftsForward(t *testing.T) {
	bd := &fakeETA{eta: testNow.AddDate(0, 0, -3)}
	s := New(bd, nil, nil, nil, 0, nil).
		WithClock(func() time.Time { return testNow })

	est := s.Estimate(context.Background(), "400099")
	require.NotNil(t, est.EDD)
	require.Equal(t, "21-AUG-26–22-AUG-26", *est.EDD)
}
