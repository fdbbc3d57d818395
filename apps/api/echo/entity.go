package echoapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/esdes/campus/core"
	"github.com/esdes/campus/core/entity"
	"github.com/esdes/campus/core/session"
	"github.com/esdes/campus/services/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type entityApi struct {
	srv *Server
}

func registerEntityAPI(g *echo.Group, layout session.Role, srv *Server) {
	api := entityApi{srv: srv}

	g.GET("/dashboard", api.dashboard, gateMiddleware(layout))

	pg := g.Group("/:page", gateMiddleware(layout))
	pg.GET("", api.list)
	pg.GET("/export", api.export)
	pg.POST("", api.create)
	pg.PUT("/:id", api.update)
	pg.DELETE("/:id", api.destroy)
}

// manager mounts the entity of the gated route on behalf of the session.
// Sections that failed to load are reported in the view, not as an error.
func (api *entityApi) manager(ctx echo.Context) (*entity.Manager, error) {
	route, err := getContextRoute(ctx)
	if err != nil {
		return nil, err
	}
	schema, ok := entity.Lookup(route.Entity)
	if !ok {
		return nil, errHttpNotFound
	}
	gw := api.srv.deps.Gateway(getContextSession(ctx).Token())
	m := entity.NewManager(schema, gw, entity.WithPageSize(api.srv.deps.Conf.List.PageSize))
	if err := m.Mount(ctx.Request().Context()); err != nil {
		if _, partial := errors.Cause(err).(*entity.LoadError); !partial {
			return nil, errors.Wrap(err, "mounting "+schema.Name)
		}
	}
	return m, nil
}

// Handlers

func (api *entityApi) dashboard(ctx echo.Context) error {
	route, err := getContextRoute(ctx)
	if err != nil {
		return err
	}
	dash, ok := entity.LookupDashboard(route.Dashboard)
	if !ok {
		return errHttpNotFound
	}
	st, err := dash.Load(ctx.Request().Context(), api.srv.deps.Gateway(getContextSession(ctx).Token()))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *entityApi) list(ctx echo.Context) error {
	var lq ListQuery
	if err := lq.Bind(ctx.QueryParams()); err != nil {
		return err
	}
	m, err := api.manager(ctx)
	if err != nil {
		return err
	}
	defer m.Unmount()

	if err := lq.Apply(m); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, m.View())
}

func (api *entityApi) export(ctx echo.Context) error {
	var lq ListQuery
	if err := lq.Bind(ctx.QueryParams()); err != nil {
		return err
	}
	m, err := api.manager(ctx)
	if err != nil {
		return err
	}
	defer m.Unmount()

	if err := lq.Apply(m); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, export.TableFromManager(m)); err != nil {
		return errors.Wrap(err, "exporting "+m.Schema().Name)
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", m.Schema().Name+".xlsx"))
	return ctx.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (api *entityApi) create(ctx echo.Context) error {
	data, err := bindRecord(ctx)
	if err != nil {
		return err
	}
	m, err := api.manager(ctx)
	if err != nil {
		return err
	}
	defer m.Unmount()

	dlg, err := m.OpenCreate()
	if err != nil {
		return err
	}
	rec, err := submit(ctx, m.Schema(), dlg, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *entityApi) update(ctx echo.Context) error {
	data, err := bindRecord(ctx)
	if err != nil {
		return err
	}
	m, err := api.manager(ctx)
	if err != nil {
		return err
	}
	defer m.Unmount()

	dlg, err := m.OpenEdit(ctx.Param("id"))
	if err != nil {
		return err
	}
	rec, err := submit(ctx, m.Schema(), dlg, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

// destroy deletes without asking: the console asked for confirmation before sending the request.
func (api *entityApi) destroy(ctx echo.Context) error {
	m, err := api.manager(ctx)
	if err != nil {
		return err
	}
	defer m.Unmount()

	if err := m.Delete(ctx.Request().Context(), ctx.Param("id"), nil); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// bindRecord decodes the request body keeping numbers as json.Number.
func bindRecord(ctx echo.Context) (entity.Record, error) {
	var data entity.Record
	dec := json.NewDecoder(ctx.Request().Body)
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "corps de requête invalide").SetInternal(err)
	}
	return data, nil
}

// submit copies data onto the dialog draft, then submits it.
func submit(ctx echo.Context, schema *entity.Schema, dlg *entity.Dialog, data entity.Record) (entity.Record, error) {
	fields := make([]string, 0, len(data))
	for fld := range data {
		if fld != "id" {
			fields = append(fields, fld)
		}
	}

	var fldErrs []core.FieldError
	for _, fld := range schema.EditOrder(fields) {
		if err := dlg.Set(fld, data[fld]); err != nil {
			switch errors.Cause(err) {
			case entity.ErrUnknownField:
				fldErrs = append(fldErrs, core.FieldError{Field: fld, Error: "champ inconnu"})
			case entity.ErrReadOnly:
				fldErrs = append(fldErrs, core.FieldError{Field: fld, Error: "champ en lecture seule"})
			default:
				return nil, err
			}
		}
	}
	if len(fldErrs) > 0 {
		_ = dlg.Cancel()
		return nil, core.NewValidationError(nil, fldErrs...)
	}
	return dlg.Submit(ctx.Request().Context())
}
