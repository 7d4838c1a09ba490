package cloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/digitalocean/godo"
	"go.uber.org/zap"

	"github.com/arfa79/tailscale/pkg/model"
)

// minMemoryMB is the smallest droplet memory an exit node runs well on.
const minMemoryMB = 1000

// Placement is the resolved region, size and image every new droplet is
// created with. Resolved once at startup; failures there are fatal.
type Placement struct {
	Region godo.Region
	Size   godo.Size
	Image  godo.Image
}

// ResolvePlacement validates the configured region and image against the
// provider catalogs and picks the cheapest size with at least 1 GB memory
// available in that region.
func ResolvePlacement(ctx context.Context, provider Provider, regionSlug, imageName string, log *zap.SugaredLogger) (*Placement, error) {
	regions, err := provider.ListRegions(ctx)
	if err != nil {
		return nil, model.NewConfigError("listing regions failed", err)
	}
	sizes, err := provider.ListSizes(ctx)
	if err != nil {
		return nil, model.NewConfigError("listing sizes failed", err)
	}
	images, err := provider.ListImages(ctx)
	if err != nil {
		return nil, model.NewConfigError("listing images failed", err)
	}

	region, err := findRegion(regions, regionSlug)
	if err != nil {
		return nil, err
	}
	image, err := findImage(images, imageName)
	if err != nil {
		return nil, err
	}
	size, err := selectSize(sizes, region.Slug)
	if err != nil {
		return nil, err
	}

	log.Infof("placement resolved: region=%s size=%s ($%.2f/month) image=%s",
		region.Slug, size.Slug, size.PriceMonthly, image.Slug)
	return &Placement{Region: region, Size: size, Image: image}, nil
}

func findRegion(regions []godo.Region, slug string) (godo.Region, error) {
	available := make([]string, 0, len(regions))
	for _, r := range regions {
		if r.Slug == slug {
			return r, nil
		}
		available = append(available, r.Slug)
	}
	return godo.Region{}, model.NewConfigError(
		fmt.Sprintf("region %q not found, available: %s", slug, strings.Join(available, ", ")), nil)
}

// findImage matches by slug substring, the way DO_IMAGE=ubuntu-22-04
// matches ubuntu-22-04-x64.
func findImage(images []godo.Image, name string) (godo.Image, error) {
	for _, img := range images {
		if img.Slug != "" && strings.Contains(img.Slug, name) {
			return img, nil
		}
	}
	return godo.Image{}, model.NewConfigError(
		fmt.Sprintf("no image slug containing %q found, check DO_IMAGE", name), nil)
}

// selectSize picks the cheapest size in the region meeting the memory floor.
func selectSize(sizes []godo.Size, regionSlug string) (godo.Size, error) {
	var best godo.Size
	found := false
	for _, s := range sizes {
		if !s.Available || s.Memory < minMemoryMB || s.PriceMonthly <= 0 {
			continue
		}
		if !sizeInRegion(s, regionSlug) {
			continue
		}
		if !found || s.PriceMonthly < best.PriceMonthly {
			best = s
			found = true
		}
	}
	if !found {
		return godo.Size{}, model.NewConfigError(
			fmt.Sprintf("no suitable size (>=%d MB RAM) found in region %s", minMemoryMB, regionSlug), nil)
	}
	return best, nil
}

func sizeInRegion(s godo.Size, regionSlug string) bool {
	for _, r := range s.Regions {
		if r == regionSlug {
			return true
		}
	}
	return false
}
