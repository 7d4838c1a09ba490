// Package cloud wraps the DigitalOcean API surface the reconciler consumes:
// droplet CRUD, action polling and the region/size/image catalogs.
package cloud

import (
	"context"
	"fmt"

	"github.com/digitalocean/godo"
)

// Provider is the narrow DigitalOcean surface used by the manager. It is an
// interface so reconciliation logic can be exercised against fakes.
type Provider interface {
	ListDroplets(ctx context.Context) ([]godo.Droplet, error)
	GetDroplet(ctx context.Context, id int) (*godo.Droplet, error)
	// CreateDroplet submits a create request and returns the droplet handle
	// together with the id of the asynchronous creation action.
	CreateDroplet(ctx context.Context, req *godo.DropletCreateRequest) (*godo.Droplet, int, error)
	DeleteDroplet(ctx context.Context, id int) error
	GetAction(ctx context.Context, id int) (*godo.Action, error)
	ListRegions(ctx context.Context) ([]godo.Region, error)
	ListSizes(ctx context.Context) ([]godo.Size, error)
	ListImages(ctx context.Context) ([]godo.Image, error)
}

// Client implements Provider on top of godo.
type Client struct {
	do *godo.Client
}

// NewClient builds a token-authenticated DigitalOcean client.
func NewClient(token string) *Client {
	return &Client{do: godo.NewFromToken(token)}
}

const pageSize = 200

func (c *Client) ListDroplets(ctx context.Context) ([]godo.Droplet, error) {
	var all []godo.Droplet
	opt := &godo.ListOptions{PerPage: pageSize}
	for {
		droplets, resp, err := c.do.Droplets.List(ctx, opt)
		if err != nil {
			return nil, fmt.Errorf("list droplets: %w", err)
		}
		all = append(all, droplets...)
		if resp.Links == nil || resp.Links.IsLastPage() {
			return all, nil
		}
		page, err := resp.Links.CurrentPage()
		if err != nil {
			return nil, fmt.Errorf("list droplets pagination: %w", err)
		}
		opt.Page = page + 1
	}
}

func (c *Client) GetDroplet(ctx context.Context, id int) (*godo.Droplet, error) {
	droplet, _, err := c.do.Droplets.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get droplet %d: %w", id, err)
	}
	return droplet, nil
}

func (c *Client) CreateDroplet(ctx context.Context, req *godo.DropletCreateRequest) (*godo.Droplet, int, error) {
	droplet, resp, err := c.do.Droplets.Create(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("create droplet %s: %w", req.Name, err)
	}
	actionID := 0
	if resp != nil && resp.Links != nil && len(resp.Links.Actions) > 0 {
		actionID = resp.Links.Actions[0].ID
	}
	return droplet, actionID, nil
}

func (c *Client) DeleteDroplet(ctx context.Context, id int) error {
	if _, err := c.do.Droplets.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete droplet %d: %w", id, err)
	}
	return nil
}

func (c *Client) GetAction(ctx context.Context, id int) (*godo.Action, error) {
	action, _, err := c.do.Actions.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get action %d: %w", id, err)
	}
	return action, nil
}

func (c *Client) ListRegions(ctx context.Context) ([]godo.Region, error) {
	regions, _, err := c.do.Regions.List(ctx, &godo.ListOptions{PerPage: pageSize})
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	return regions, nil
}

func (c *Client) ListSizes(ctx context.Context) ([]godo.Size, error) {
	sizes, _, err := c.do.Sizes.List(ctx, &godo.ListOptions{PerPage: pageSize})
	if err != nil {
		return nil, fmt.Errorf("list sizes: %w", err)
	}
	return sizes, nil
}

func (c *Client) ListImages(ctx context.Context) ([]godo.Image, error) {
	images, _, err := c.do.Images.ListDistribution(ctx, &godo.ListOptions{PerPage: pageSize})
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return images, nil
}
