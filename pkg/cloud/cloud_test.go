package cloud

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/digitalocean/godo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arfa79/tailscale/pkg/model"
)

type fakeProvider struct {
	Provider

	droplets  []godo.Droplet
	listErr   error
	listCalls int32

	regions []godo.Region
	sizes   []godo.Size
	images  []godo.Image
}

func (f *fakeProvider) ListDroplets(context.Context) ([]godo.Droplet, error) {
	atomic.AddInt32(&f.listCalls, 1)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.droplets, nil
}

func (f *fakeProvider) ListRegions(context.Context) ([]godo.Region, error) { return f.regions, nil }
func (f *fakeProvider) ListSizes(context.Context) ([]godo.Size, error)     { return f.sizes, nil }
func (f *fakeProvider) ListImages(context.Context) ([]godo.Image, error)   { return f.images, nil }

func catalog() *fakeProvider {
	return &fakeProvider{
		regions: []godo.Region{
			{Slug: "nyc3", Available: true},
			{Slug: "fra1", Available: true},
		},
		sizes: []godo.Size{
			{Slug: "s-1vcpu-512mb", Memory: 512, PriceMonthly: 4, Regions: []string{"fra1"}, Available: true},
			{Slug: "s-1vcpu-1gb", Memory: 1024, PriceMonthly: 6, Regions: []string{"fra1", "nyc3"}, Available: true},
			{Slug: "s-2vcpu-2gb", Memory: 2048, PriceMonthly: 18, Regions: []string{"fra1"}, Available: true},
			{Slug: "s-1vcpu-1gb-unavailable", Memory: 1024, PriceMonthly: 5, Regions: []string{"fra1"}, Available: false},
		},
		images: []godo.Image{
			{ID: 101, Slug: "debian-12-x64"},
			{ID: 102, Slug: "ubuntu-22-04-x64"},
		},
	}
}

func TestResolvePlacement(t *testing.T) {
	p, err := ResolvePlacement(context.Background(), catalog(), "fra1", "ubuntu-22-04", zap.NewNop().Sugar())
	require.NoError(t, err)

	assert.Equal(t, "fra1", p.Region.Slug)
	// Cheapest available size with >= 1 GB memory in the region.
	assert.Equal(t, "s-1vcpu-1gb", p.Size.Slug)
	assert.Equal(t, 102, p.Image.ID)
}

func TestResolvePlacementUnknownRegion(t *testing.T) {
	_, err := ResolvePlacement(context.Background(), catalog(), "mars1", "ubuntu-22-04", zap.NewNop().Sugar())
	var cfgErr *model.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "mars1")
}

func TestResolvePlacementUnknownImage(t *testing.T) {
	_, err := ResolvePlacement(context.Background(), catalog(), "fra1", "windows-server", zap.NewNop().Sugar())
	var cfgErr *model.ConfigError
	require.True(t, errors.As(err, &cfgErr))
}

func TestResolvePlacementNoSuitableSize(t *testing.T) {
	f := catalog()
	f.sizes = []godo.Size{
		{Slug: "s-1vcpu-512mb", Memory: 512, PriceMonthly: 4, Regions: []string{"fra1"}, Available: true},
	}
	_, err := ResolvePlacement(context.Background(), f, "fra1", "ubuntu-22-04", zap.NewNop().Sugar())
	var cfgErr *model.ConfigError
	require.True(t, errors.As(err, &cfgErr))
}

func TestInventoryCachesWithinTTL(t *testing.T) {
	f := &fakeProvider{droplets: []godo.Droplet{{ID: 1}}}
	inv := NewInventory(f, time.Minute, zap.NewNop().Sugar())

	_, err := inv.Droplets(context.Background(), false)
	require.NoError(t, err)
	_, err = inv.Droplets(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&f.listCalls))
}

func TestInventoryForceRefresh(t *testing.T) {
	f := &fakeProvider{droplets: []godo.Droplet{{ID: 1}}}
	inv := NewInventory(f, time.Minute, zap.NewNop().Sugar())

	_, err := inv.Droplets(context.Background(), false)
	require.NoError(t, err)
	_, err = inv.Droplets(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&f.listCalls))
}

func TestInventoryExpiredTTLRefetches(t *testing.T) {
	f := &fakeProvider{droplets: []godo.Droplet{{ID: 1}}}
	inv := NewInventory(f, time.Millisecond, zap.NewNop().Sugar())

	_, err := inv.Droplets(context.Background(), false)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = inv.Droplets(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&f.listCalls))
}

func TestInventoryServesStaleOnFailure(t *testing.T) {
	f := &fakeProvider{droplets: []godo.Droplet{{ID: 1}}}
	inv := NewInventory(f, time.Millisecond, zap.NewNop().Sugar())

	_, err := inv.Droplets(context.Background(), false)
	require.NoError(t, err)

	f.listErr = errors.New("api down")
	time.Sleep(5 * time.Millisecond)
	droplets, err := inv.Droplets(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, droplets, 1)
}

func TestInventoryFailureWithNoCache(t *testing.T) {
	f := &fakeProvider{listErr: errors.New("api down")}
	inv := NewInventory(f, time.Minute, zap.NewNop().Sugar())

	_, err := inv.Droplets(context.Background(), false)
	assert.Error(t, err)
}

func TestInventoryByID(t *testing.T) {
	f := &fakeProvider{droplets: []godo.Droplet{{ID: 7}, {ID: 9}}}
	inv := NewInventory(f, time.Minute, zap.NewNop().Sugar())

	byID, err := inv.ByID(context.Background(), false)
	require.NoError(t, err)
	assert.Contains(t, byID, 7)
	assert.Contains(t, byID, 9)
	assert.NotContains(t, byID, 8)
}
