// Package contacts exposes the corp directory endpoints: department and user
// listing. Functions are stateless request shapers over the wecom client; all
// credential and retry handling lives in the client.
package contacts

import (
	"context"
	"net/url"
	"strconv"

	"github.com/jrsteele09/go-wecom-suite/internal/jsoncodec"
	"github.com/jrsteele09/go-wecom-suite/wecom"
)

// Department is one node of a corp's department tree. Identifiers can exceed
// 53-bit precision, hence int64.
type Department struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID int64  `json:"parentid"`
	Order    int64  `json:"order"`
}

// User is a directory member as returned by the simple listing.
type User struct {
	UserID     string  `json:"userid"`
	Name       string  `json:"name"`
	Department []int64 `json:"department"`
	OpenUserID string  `json:"open_userid"`
}

type listDepartmentsResponse struct {
	Departments []Department `json:"department"`
}

type listUsersResponse struct {
	Users []User `json:"userlist"`
}

// ListDepartments fetches the department tree of a corp. A parentID of zero
// lists from the root.
func ListDepartments(ctx context.Context, c *wecom.Client, corpID string, parentID int64) ([]Department, error) {
	q := url.Values{}
	if parentID > 0 {
		q.Set("id", strconv.FormatInt(parentID, 10))
	}

	var resp listDepartmentsResponse
	if err := c.CorpGet(ctx, corpID, "/cgi-bin/department/list", q, &resp); err != nil {
		return nil, err
	}
	return resp.Departments, nil
}

// ListUsers fetches members of one department, optionally recursing into its
// children.
func ListUsers(ctx context.Context, c *wecom.Client, corpID string, departmentID int64, fetchChild bool) ([]User, error) {
	q := url.Values{}
	q.Set("department_id", strconv.FormatInt(departmentID, 10))
	if fetchChild {
		q.Set("fetch_child", "1")
	}

	var resp listUsersResponse
	if err := c.CorpGet(ctx, corpID, "/cgi-bin/user/simplelist", q, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// Register adds the contacts operations to a registry.
func Register(r *wecom.Registry, c *wecom.Client) error {
	if err := r.Register("contacts.department.list", func(ctx context.Context, corpID string, params []byte) (interface{}, error) {
		var p struct {
			ParentID int64 `json:"parent_id"`
		}
		if len(params) > 0 {
			if err := jsoncodec.Unmarshal(params, &p); err != nil {
				return nil, err
			}
		}
		return ListDepartments(ctx, c, corpID, p.ParentID)
	}); err != nil {
		return err
	}

	return r.Register("contacts.user.list", func(ctx context.Context, corpID string, params []byte) (interface{}, error) {
		var p struct {
			DepartmentID int64 `json:"department_id"`
			FetchChild   bool  `json:"fetch_child"`
		}
		if len(params) > 0 {
			if err := jsoncodec.Unmarshal(params, &p); err != nil {
				return nil, err
			}
		}
		return ListUsers(ctx, c, corpID, p.DepartmentID, p.FetchChild)
	})
}
