package session

import (
	"strings"

	"github.com/pkg/errors"
)

const LoginPath = "/login"

var ErrUnknownRoute = errors.New("unknown route")

type (
	// Route maps a console path to its page. Entity is set on entity lists, Dashboard on dashboards.
	Route struct {
		Path      string `json:"path"`
		Layout    Role   `json:"layout"`
		Page      string `json:"page"`
		Entity    string `json:"entity,omitempty"`
		Dashboard string `json:"dashboard,omitempty"`
	}

	// Decision is the outcome of Gate: render Route, or go to Redirect when it is set.
	Decision struct {
		Route    Route  `json:"route"`
		Redirect string `json:"redirect,omitempty"`
	}
)

func (d Decision) Allowed() bool { return d.Redirect == "" }

var Routes = []Route{
	{Path: LoginPath, Page: "login"},
	{Path: "/admin/dashboard", Layout: RoleAdmin, Page: "dashboard", Dashboard: "campus"},
	{Path: "/admin/students", Layout: RoleAdmin, Page: "students", Entity: "students"},
	{Path: "/admin/presentiel", Layout: RoleAdmin, Page: "presentiel", Entity: "presentiel"},
	{Path: "/admin/distance", Layout: RoleAdmin, Page: "distance", Entity: "distance"},
	{Path: "/admin/professors", Layout: RoleAdmin, Page: "professors", Entity: "professors"},
	{Path: "/admin/subjects", Layout: RoleAdmin, Page: "subjects", Entity: "subjects"},
	{Path: "/admin/mentions", Layout: RoleAdmin, Page: "mentions", Entity: "mentions"},
	{Path: "/admin/levels", Layout: RoleAdmin, Page: "levels", Entity: "levels"},
	{Path: "/admin/courses", Layout: RoleAdmin, Page: "courses", Entity: "courses"},
	{Path: "/admin/categories", Layout: RoleAdmin, Page: "categories", Entity: "categories"},
	{Path: "/admin/fees", Layout: RoleAdmin, Page: "fees", Entity: "fees"},
	{Path: "/admin/users", Layout: RoleAdmin, Page: "users", Entity: "users"},
	{Path: "/admin/settings", Layout: RoleAdmin, Page: "settings"},
	{Path: "/comptable/dashboard", Layout: RoleComptable, Page: "dashboard", Dashboard: "payments"},
	{Path: "/comptable/students", Layout: RoleComptable, Page: "students", Entity: "students"},
	{Path: "/comptable/payments", Layout: RoleComptable, Page: "payments", Entity: "payments"},
	{Path: "/comptable/tranches", Layout: RoleComptable, Page: "tranches", Entity: "fees"},
}

// LookupRoute finds the route of path (trailing slash ignored).
func LookupRoute(path string) (Route, bool) {
	path = normalize(path)
	for _, r := range Routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// RouteFor finds the route rendering entity in layout.
func RouteFor(layout Role, entity string) (Route, bool) {
	for _, r := range Routes {
		if r.Layout == layout && r.Entity == entity {
			return r, true
		}
	}
	return Route{}, false
}

// Home is where a user of layout lands after login.
func Home(layout Role) string {
	switch layout {
	case RoleAdmin:
		return "/admin/dashboard"
	case RoleComptable:
		return "/comptable/dashboard"
	}
	return LoginPath
}

// Gate decides what path renders for this session.
// Anonymous users are sent to the login page; admins may open the accountant area too.
func (s *Session) Gate(path string) (Decision, error) {
	layout := s.Layout()
	if normalize(path) == "/" {
		return Decision{Redirect: Home(layout)}, nil
	}
	route, ok := LookupRoute(path)
	if !ok {
		return Decision{}, errors.Wrap(ErrUnknownRoute, path)
	}
	switch {
	case route.Layout == RoleNone:
		if route.Path == LoginPath && layout != RoleNone {
			return Decision{Route: route, Redirect: Home(layout)}, nil
		}
		return Decision{Route: route}, nil
	case layout == RoleNone:
		return Decision{Route: route, Redirect: LoginPath}, nil
	case route.Layout == layout, layout == RoleAdmin:
		return Decision{Route: route}, nil
	default:
		return Decision{Route: route, Redirect: Home(layout)}, nil
	}
}

func normalize(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if path = strings.TrimRight(path, "/"); path == "" {
		return "/"
	}
	return path
}
