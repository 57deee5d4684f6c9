package records

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes a Store as the hosted backend API. Bodies use the row
// shape so the remote client can round-trip them unchanged.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients/:id", h.GetPatient)
	api.PATCH("/patients/:id", h.UpdatePatient)
	api.DELETE("/patients/:id", h.DeletePatient)

	api.GET("/notes", h.ListNotes)
	api.POST("/notes", h.CreateNote)
	api.GET("/notes/:id", h.GetNote)
	api.PATCH("/notes/:id", h.UpdateNote)
	api.DELETE("/notes/:id", h.DeleteNote)
}

// httpError maps the error taxonomy onto status codes.
func httpError(err error) error {
	switch KindOf(err) {
	case KindNotFound:
		return echo.NewHTTPError(http.StatusNotFound, "record not found")
	case KindAuth:
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case KindInvalid:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case KindTransport:
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func bindValid(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if c.Echo().Validator == nil {
		return nil
	}
	if err := c.Validate(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// API clients may send tags in any case or with duplicates; stored tags are
// always normalised.
func normalizeTagPatch(tags *[]string) *[]string {
	if tags == nil {
		return nil
	}
	return Ptr(NormalizeTags(*tags))
}

// -- Patients --

func (h *Handler) ListPatients(c echo.Context) error {
	rows, err := h.store.ListPatients(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var row PatientRow
	if err := bindValid(c, &row); err != nil {
		return err
	}
	row.Tags = NormalizeTags(row.Tags)
	created, err := h.store.InsertPatient(c.Request().Context(), row)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetPatient(c echo.Context) error {
	row, err := h.store.GetPatient(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, row)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	var patch PatientPatch
	if err := bindValid(c, &patch); err != nil {
		return err
	}
	patch.Tags = normalizeTagPatch(patch.Tags)
	row, err := h.store.UpdatePatient(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, row)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	if err := h.store.DeletePatient(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Notes --

func (h *Handler) ListNotes(c echo.Context) error {
	rows, err := h.store.ListNotes(c.Request().Context(), NoteFilter{PatientID: c.QueryParam("patient_id")})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *Handler) CreateNote(c echo.Context) error {
	var row NoteRow
	if err := bindValid(c, &row); err != nil {
		return err
	}
	row.Tags = NormalizeTags(row.Tags)
	created, err := h.store.InsertNote(c.Request().Context(), row)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetNote(c echo.Context) error {
	row, err := h.store.GetNote(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, row)
}

func (h *Handler) UpdateNote(c echo.Context) error {
	var patch NotePatch
	if err := bindValid(c, &patch); err != nil {
		return err
	}
	patch.Tags = normalizeTagPatch(patch.Tags)
	row, err := h.store.UpdateNote(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, row)
}

func (h *Handler) DeleteNote(c echo.Context) error {
	if err := h.store.DeleteNote(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
