package echoapi

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/esdes/campus/core"
	"github.com/esdes/campus/core/entity"
	"github.com/esdes/campus/core/session"
)

var (
	searchParam = "search"
	pageParam   = "page"
	fromParam   = "from"
	toParam     = "to"

	errInvalidDate = "date invalide (AAAA-MM-JJ)"
	errInvalidPage = "numéro de page invalide"
)

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	ForgotPasswordRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	ResetPasswordRequest struct {
		Email       string `json:"email" validate:"required,email"`
		ResetPin    string `json:"reset_pin" validate:"required"`
		NewPassword string `json:"new_password" validate:"required,min=8"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	sessionResponse struct {
		Authenticated bool         `json:"authenticated"`
		Layout        session.Role `json:"layout,omitempty"`
		Username      string       `json:"username,omitempty"`
		Home          string       `json:"home"`
	}
)

func (r LoginRequest) Validate() error          { return core.Validate.Struct(r) }
func (r ForgotPasswordRequest) Validate() error { return core.Validate.Struct(r) }
func (r ResetPasswordRequest) Validate() error  { return core.Validate.Struct(r) }

func newSessionResponse(sess *session.Session) sessionResponse {
	resp := sessionResponse{Home: session.Home(session.RoleNone)}
	if !sess.IsAuthenticated() {
		return resp
	}
	layout := sess.Layout()
	resp.Authenticated = true
	resp.Layout = layout
	resp.Username = sess.Claims().Username
	resp.Home = session.Home(layout)
	return resp
}

// ListQuery is the state of a list screen as carried by the query string.
// Any parameter other than search, page, from and to selects a dropdown filter.
type ListQuery struct {
	Filter entity.FilterState
	Page   int
}

func (lq *ListQuery) Bind(data url.Values) error {
	var fldErrs []core.FieldError

	lq.Filter.Search = strings.TrimSpace(data.Get(searchParam))
	if p := data.Get(pageParam); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			fldErrs = append(fldErrs, core.FieldError{Field: pageParam, Error: errInvalidPage})
		}
		lq.Page = n
	}
	for _, param := range []string{fromParam, toParam} {
		val := data.Get(param)
		if val == "" {
			continue
		}
		t, ok := entity.ParseDate(val)
		if !ok {
			fldErrs = append(fldErrs, core.FieldError{Field: param, Error: errInvalidDate})
			continue
		}
		if param == fromParam {
			lq.Filter.From = t
		} else {
			lq.Filter.To = t
		}
	}
	for key, vals := range data {
		switch key {
		case searchParam, pageParam, fromParam, toParam:
			continue
		}
		if len(vals) == 0 {
			continue
		}
		if lq.Filter.Selects == nil {
			lq.Filter.Selects = make(map[string]string)
		}
		lq.Filter.Selects[key] = vals[0]
	}

	if len(fldErrs) > 0 {
		return core.NewValidationError(nil, fldErrs...)
	}
	return nil
}

// Apply puts m in the state described by lq.
func (lq *ListQuery) Apply(m *entity.Manager) error {
	if err := m.SetFilterState(lq.Filter); err != nil {
		return errors.Wrap(err, "applying list query")
	}
	if lq.Page > 1 {
		m.GoTo(lq.Page)
	}
	return nil
}
