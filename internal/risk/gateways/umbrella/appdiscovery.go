package umbrella

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/haukened/risklists/internal/risk/common/utils"
	"github.com/haukened/risklists/internal/risk/domain"
)

const (
	opListApplications  = "list applications"
	opApplicationDetail = "application detail"
)

var appDiscoveryPath = []string{"reports", "v2", "appDiscovery", "applications"}

// hostKeys are the key fragments that mark a field as carrying a location.
var hostKeys = []string{"url", "uri", "link", "href", "endpoint", "domain"}

type applicationsPage struct {
	Items      []json.RawMessage `json:"items"`
	TotalPages *int              `json:"totalPages"`
}

// ListApplications pages through the App Discovery inventory and returns
// every application in API order.
func (c *Client) ListApplications(ctx context.Context) ([]domain.Application, error) {
	var apps []domain.Application
	for page := 1; ; page++ {
		if page > maxPages {
			return nil, paginationError(opListApplications)
		}
		var p applicationsPage
		target := c.endpoint(pageQuery(page, c.pageLimit), appDiscoveryPath...)
		if err := c.doJSON(ctx, opListApplications, http.MethodGet, target, nil, &p); err != nil {
			return nil, err
		}
		for _, raw := range p.Items {
			app, err := decodeApplication(raw)
			if err != nil {
				return nil, &domain.RemoteError{Op: opListApplications, StatusCode: http.StatusOK, Message: errMalformed, Err: err}
			}
			apps = append(apps, app)
		}
		c.logger.Debug(map[string]any{"page": page, "items": len(p.Items)}, "app_discovery_page")

		if len(p.Items) == 0 {
			break
		}
		if p.TotalPages != nil {
			if page >= *p.TotalPages {
				break
			}
			continue
		}
		if len(p.Items) < c.pageLimit {
			break
		}
	}
	return apps, nil
}

// ApplicationDetail fetches one application by id. The detail payload is
// a further source of hosts; fields missing from it keep their zero value.
func (c *Client) ApplicationDetail(ctx context.Context, id int64) (domain.Application, error) {
	var raw json.RawMessage
	segments := append(append([]string{}, appDiscoveryPath...), strconv.FormatInt(id, 10))
	if err := c.doJSON(ctx, opApplicationDetail, http.MethodGet, c.endpoint(nil, segments...), nil, &raw); err != nil {
		return domain.Application{}, err
	}
	app, err := decodeApplication(unwrapData(raw))
	if err != nil {
		return domain.Application{}, &domain.RemoteError{Op: opApplicationDetail, StatusCode: http.StatusOK, Message: errMalformed, Err: err}
	}
	if app.ID == 0 {
		app.ID = id
	}
	return app, nil
}

// unwrapData returns the "data" member of an envelope, or raw unchanged.
func unwrapData(raw json.RawMessage) json.RawMessage {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && env.Data[0] == '{' {
		return env.Data
	}
	return raw
}

// decodeApplication reads the id, name and weightedRisk of an inventory
// item (keys matched case-insensitively) and collects its hosts.
func decodeApplication(raw json.RawMessage) (domain.Application, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var item map[string]any
	if err := dec.Decode(&item); err != nil {
		return domain.Application{}, err
	}
	if item == nil {
		return domain.Application{}, fmt.Errorf("application item is null")
	}
	app := domain.Application{Hosts: ExtractHosts(item)}
	for k, v := range item {
		switch strings.ToLower(k) {
		case "id":
			// ids are positive; anything else is treated as absent
			if id := toInt64(v); id > 0 {
				app.ID = id
			}
		case "name":
			app.Name, _ = v.(string)
		case "weightedrisk":
			app.WeightedRisk, _ = v.(string)
		}
	}
	return app, nil
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case json.Number:
		n, _ := t.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n
	case float64:
		return int64(t)
	}
	return 0
}

// ExtractHosts walks a decoded inventory item and returns the canonical
// host names it references, sorted and unique. Any string that starts with
// http://, https:// or www. counts; under a location-like key (url, link,
// domain and so on) a bare host name counts too.
func ExtractHosts(item any) []string {
	seen := make(map[string]struct{})
	walkHosts(item, "", seen)
	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

func walkHosts(v any, key string, seen map[string]struct{}) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			walkHosts(child, k, seen)
		}
	case []any:
		for _, child := range t {
			walkHosts(child, key, seen)
		}
	case string:
		var host string
		switch {
		case utils.IsURLLike(t):
			host = utils.HostFromURL(t)
		case isHostKey(key) && !strings.ContainsAny(strings.TrimSpace(t), " /@:"):
			host = utils.CanonicalDNSName(t)
		}
		if validHost(host) {
			seen[host] = struct{}{}
		}
	}
}

func isHostKey(key string) bool {
	k := strings.ToLower(key)
	for _, frag := range hostKeys {
		if strings.Contains(k, frag) {
			return true
		}
	}
	return false
}

// validHost accepts names of at least two labels made of letters, digits
// and hyphens, no label longer than 63 and the whole at most 253. The
// top-level label must hold a letter, which rules out IP literals. A bare
// public suffix ("co.uk") is not a host.
func validHost(h string) bool {
	if h == "" || len(h) > 253 {
		return false
	}
	labels := strings.Split(h, ".")
	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if l == "" || len(l) > 63 || l[0] == '-' || l[len(l)-1] == '-' {
			return false
		}
		for _, r := range l {
			if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '-' && r != '_' {
				return false
			}
		}
	}
	if strings.IndexFunc(labels[len(labels)-1], func(r rune) bool { return r >= 'a' && r <= 'z' }) < 0 {
		return false
	}
	return !utils.IsPublicSuffix(h)
}
