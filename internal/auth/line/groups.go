package line

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nezunotify/notifyctl/internal/logging"
	"github.com/nezunotify/notifyctl/internal/misc"
)

// GetGroupList walks /api/groupList from page 1 until the first empty page and
// returns every group in page order. Any failing page aborts the listing.
func (m *SessionManager) GetGroupList(ctx context.Context) ([]Group, error) {
	entry := logging.FromContext(ctx).WithField("stage", "group-list")
	header := http.Header{}
	misc.ApplyXHRHeaders(header, m.endpoints.MyPage())

	var groups []Group
	for page := 1; ; page++ {
		res, err := m.groupPage(ctx, page, header)
		if err != nil {
			return nil, err
		}
		entry.WithField("page", page).Debugf("%d groups", len(res.Results))
		if len(res.Results) == 0 {
			break
		}
		groups = append(groups, res.Results...)
	}
	return groups, nil
}

func (m *SessionManager) groupPage(ctx context.Context, page int, header http.Header) (*GroupListResponse, error) {
	resp, err := m.client.Get(ctx, m.endpoints.GroupList(), url.Values{"page": {strconv.Itoa(page)}}, header)
	if err != nil {
		return nil, &GetGroupListError{Page: page, Cause: err}
	}
	res, err := ParseGroupList(resp.StatusCode, resp.URL.String(), resp.Body)
	if err != nil {
		return nil, &GetGroupListError{Page: page, Cause: err}
	}
	return res, nil
}

// ParseGroupList validates one group list page.
func ParseGroupList(statusCode int, rawURL string, body []byte) (*GroupListResponse, error) {
	var res GroupListResponse
	if err := decodeStrict(body, &res, "status", "results"); err != nil {
		return nil, newValidationError(statusCode, rawURL, body, err)
	}
	return &res, nil
}

// GroupByMid returns the group with the given mid.
func (m *SessionManager) GroupByMid(ctx context.Context, mid string) (Group, error) {
	groups, err := m.GetGroupList(ctx)
	if err != nil {
		return Group{}, err
	}
	for _, group := range groups {
		if group.Mid == mid {
			return group, nil
		}
	}
	return Group{}, fmt.Errorf("%w: %s", ErrGroupNotFound, mid)
}
