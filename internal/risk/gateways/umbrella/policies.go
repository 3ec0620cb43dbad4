package umbrella

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/haukened/risklists/internal/risk/domain"
)

const (
	opListDestinationLists  = "list destination lists"
	opCreateDestinationList = "create destination list"
	opListDestinations      = "list destinations"
	opAddDestinations       = "add destinations"
)

// bundleTypeDNS is the bundle type of DNS-policy destination lists.
const bundleTypeDNS = 1

var destinationListsPath = []string{"policies", "v2", "destinationlists"}

type destinationListJSON struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Access   string `json:"access"`
	IsGlobal bool   `json:"isGlobal"`
	Meta     struct {
		DestinationCount int `json:"destinationCount"`
	} `json:"meta"`
}

func (d destinationListJSON) toDomain() domain.DestinationList {
	return domain.DestinationList{
		ID:               d.ID,
		Name:             d.Name,
		Access:           d.Access,
		IsGlobal:         d.IsGlobal,
		DestinationCount: d.Meta.DestinationCount,
	}
}

type pageMeta struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

type destinationListsPage struct {
	Data []destinationListJSON `json:"data"`
	Meta *pageMeta             `json:"meta"`
}

type createListRequest struct {
	Access       string                    `json:"access"`
	IsGlobal     bool                      `json:"isGlobal"`
	Name         string                    `json:"name"`
	BundleTypeID int                       `json:"bundleTypeId"`
	Destinations []domain.DestinationEntry `json:"destinations"`
}

type destinationJSON struct {
	Destination string `json:"destination"`
	Type        string `json:"type"`
}

type destinationsPage struct {
	Data []destinationJSON `json:"data"`
	Meta *pageMeta         `json:"meta"`
}

// inBandStatus is the error envelope the Policies API may return with HTTP 200.
type inBandStatus struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

// morePages reports whether another page should be requested after page
// returned n items.
func morePages(meta *pageMeta, page, n, limit int) bool {
	if n == 0 {
		return false
	}
	if meta != nil && meta.Total > 0 {
		per := limit
		if meta.Limit > 0 {
			per = meta.Limit
		}
		return page*per < meta.Total
	}
	return n >= limit
}

// ListDestinationLists returns every destination list of the organization.
func (c *Client) ListDestinationLists(ctx context.Context) ([]domain.DestinationList, error) {
	var lists []domain.DestinationList
	for page := 1; ; page++ {
		if page > maxPages {
			return nil, paginationError(opListDestinationLists)
		}
		var p destinationListsPage
		target := c.endpoint(pageQuery(page, c.pageLimit), destinationListsPath...)
		if err := c.doJSON(ctx, opListDestinationLists, http.MethodGet, target, nil, &p); err != nil {
			return nil, err
		}
		for _, d := range p.Data {
			lists = append(lists, d.toDomain())
		}
		if !morePages(p.Meta, page, len(p.Data), c.pageLimit) {
			break
		}
	}
	return lists, nil
}

// CreateDestinationList creates an empty, non-global DNS destination list.
func (c *Client) CreateDestinationList(ctx context.Context, name, access string) (domain.DestinationList, error) {
	body := createListRequest{
		Access:       access,
		IsGlobal:     false,
		Name:         name,
		BundleTypeID: bundleTypeDNS,
		Destinations: []domain.DestinationEntry{},
	}
	var resp struct {
		Data destinationListJSON `json:"data"`
	}
	if err := c.doJSON(ctx, opCreateDestinationList, http.MethodPost, c.endpoint(nil, destinationListsPath...), body, &resp); err != nil {
		return domain.DestinationList{}, err
	}
	if resp.Data.ID == 0 {
		return domain.DestinationList{}, &domain.RemoteError{Op: opCreateDestinationList, StatusCode: http.StatusOK, Message: errMissingListID, Err: domain.ErrRemote}
	}
	list := resp.Data.toDomain()
	if list.Name == "" {
		list.Name = name
	}
	c.logger.Info(map[string]any{"list": list.Name, "id": list.ID, "access": access}, "destination_list_created")
	return list, nil
}

// ListDestinations returns the destination values currently in list id.
func (c *Client) ListDestinations(ctx context.Context, id int64) ([]string, error) {
	segments := append(append([]string{}, destinationListsPath...), strconv.FormatInt(id, 10), "destinations")
	var out []string
	for page := 1; ; page++ {
		if page > maxPages {
			return nil, paginationError(opListDestinations)
		}
		var p destinationsPage
		if err := c.doJSON(ctx, opListDestinations, http.MethodGet, c.endpoint(pageQuery(page, c.pageLimit), segments...), nil, &p); err != nil {
			return nil, err
		}
		for _, d := range p.Data {
			out = append(out, d.Destination)
		}
		if !morePages(p.Meta, page, len(p.Data), c.pageLimit) {
			break
		}
	}
	return out, nil
}

// AddDestinations appends entries to list id, batchSize entries per request.
// It returns the number of entries submitted before any failure.
func (c *Client) AddDestinations(ctx context.Context, id int64, entries []domain.DestinationEntry) (int, error) {
	if c.batchSize <= 0 {
		return 0, fmt.Errorf(errNonPositiveBatch)
	}
	segments := append(append([]string{}, destinationListsPath...), strconv.FormatInt(id, 10), "destinations")
	target := c.endpoint(nil, segments...)

	added := 0
	for start := 0; start < len(entries); start += c.batchSize {
		end := min(start+c.batchSize, len(entries))
		batch := entries[start:end]

		var status inBandStatus
		if err := c.doJSON(ctx, opAddDestinations, http.MethodPost, target, batch, &status); err != nil {
			return added, err
		}
		if status.StatusCode >= 400 {
			msg := status.Message
			if msg == "" {
				msg = status.Error
			}
			if msg == "" {
				msg = errInBandRejected
			}
			return added, domain.NewRemoteError(opAddDestinations, status.StatusCode, msg)
		}
		added += len(batch)
		c.logger.Debug(map[string]any{"list_id": id, "batch": len(batch), "added": added, "total": len(entries)}, "destinations_batch_added")
	}
	return added, nil
}
