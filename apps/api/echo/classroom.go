package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
)

var errRoomNotFoundInCtx = errors.New("classroom object not found in echo.Context")

type classroomApi struct {
	svc        classroom.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerClassroomAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc classroom.Service,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := classroomApi{
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	cg := g.Group("/classrooms")

	// un-authed endpoints
	// TODO: rate limit `/code/:code` lookups
	cg.GET("/code/:code", api.retrieveByCode)

	// authed endpoints
	ag := cg.Group("", jwt)
	ag.POST("", api.create, teacherMiddleware())
	ag.GET("", api.query, teacherMiddleware())
	ag.POST("/join", api.joinByCode, studentMiddleware())

	// detail endpoints
	dg := ag.Group("/:id")
	dg.POST("/join", api.join, studentMiddleware())
	dg.DELETE("/students/:studentId", api.removeStudent)

	// owner endpoints
	og := dg.Group("", ctxClassroomOwnerMiddleware(api.svc))
	og.GET("", api.retrieve)
	og.PUT("", api.update)
	og.DELETE("", api.destroy)
	og.POST("/regenerate-code", api.regenerateCode)
}

// Handlers

func (api *classroomApi) create(ctx echo.Context) error {
	var data classroom.NewClassroom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClassroom")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	data.TeacherID = claims.Subject
	data.TeacherName = claims.Name
	data.TeacherEmail = claims.Email

	if err := data.Validate(api.validate); err != nil {
		return err
	}

	room, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating classroom")
	}
	return ctx.JSON(http.StatusCreated, room)
}

func (api *classroomApi) query(ctx echo.Context) error {
	filter := new(classroom.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []classroom.Classroom{})
	}
	filter.Clean()

	// teachers only see their own classrooms; admins see everything
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !claims.IsAdmin {
		filter.TeacherID = claims.Subject
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	rooms, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying classrooms")
	}
	if rooms == nil {
		rooms = []classroom.Classroom{}
	}
	return ctx.JSON(http.StatusOK, rooms)
}

func (api *classroomApi) retrieveByCode(ctx echo.Context) error {
	code := ctx.Param("code")
	if !classroom.IsValidCode(code) {
		return errHttpNotFound
	}
	room, err := api.svc.GetByCode(ctx.Request().Context(), code)
	if err != nil {
		return errors.Wrap(err, "finding classroom by code")
	}
	return ctx.JSON(http.StatusOK, room.Public())
}

func (api *classroomApi) joinByCode(ctx echo.Context) error {
	var data JoinByCodeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to JoinByCodeRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	room, err := api.svc.GetByCode(ctx.Request().Context(), data.Code)
	if err != nil {
		return errors.Wrap(err, "finding classroom by code")
	}
	return api.addStudent(ctx, room.ID, data.RollNumber)
}

func (api *classroomApi) join(ctx echo.Context) error {
	var data classroom.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	return api.addStudent(ctx, ctx.Param("id"), data.RollNumber)
}

func (api *classroomApi) addStudent(ctx echo.Context, roomID, rollNumber string) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	data := classroom.NewStudent{
		RollNumber:  rollNumber,
		StudentID:   claims.Subject,
		StudentName: claims.Name,
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	room, err := api.svc.AddStudent(ctx.Request().Context(), roomID, data)
	if err != nil {
		return errors.Wrap(err, "adding student")
	}
	return ctx.JSON(http.StatusOK, room)
}

// removeStudent serves both a teacher removing a student from their classroom
// and a student leaving on their own.
func (api *classroomApi) removeStudent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	studentID := ctx.Param("studentId")

	room, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding classroom by ID")
	}

	isOwner := (claims.IsTeacher || claims.IsAdmin) && (room.TeacherID == claims.Subject || claims.IsAdmin)
	if !isOwner && claims.Subject != studentID {
		return errHttpForbidden
	}

	room, err = api.svc.RemoveStudent(ctx.Request().Context(), room.ID, studentID)
	if err != nil {
		return errors.Wrap(err, "removing student")
	}
	return ctx.JSON(http.StatusOK, room)
}

func (api *classroomApi) retrieve(ctx echo.Context) error {
	room, ok := ctx.Get("object").(classroom.Classroom)
	if !ok {
		return errors.Wrap(errRoomNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, room)
}

func (api *classroomApi) update(ctx echo.Context) error {
	room, ok := ctx.Get("object").(classroom.Classroom)
	if !ok {
		return errors.Wrap(errRoomNotFoundInCtx, "retrieving object from context")
	}

	var data classroom.UpdateClassroom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClassroom")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	room, err := api.svc.Update(ctx.Request().Context(), room.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating classroom")
	}
	return ctx.JSON(http.StatusOK, room)
}

func (api *classroomApi) destroy(ctx echo.Context) error {
	room, ok := ctx.Get("object").(classroom.Classroom)
	if !ok {
		return errors.Wrap(errRoomNotFoundInCtx, "retrieving object from context")
	}

	if err := api.svc.Deactivate(ctx.Request().Context(), room.ID); err != nil {
		return errors.Wrap(err, "deactivating classroom")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classroomApi) regenerateCode(ctx echo.Context) error {
	room, ok := ctx.Get("object").(classroom.Classroom)
	if !ok {
		return errors.Wrap(errRoomNotFoundInCtx, "retrieving object from context")
	}

	room, err := api.svc.RegenerateCode(ctx.Request().Context(), room.ID)
	if err != nil {
		return errors.Wrap(err, "regenerating code")
	}
	return ctx.JSON(http.StatusOK, room)
}

// ctxClassroomOwnerMiddleware loads the classroom and lets only its owning
// teacher (or an admin) through. Non-owners get a 404, not a 403: they should
// not learn the classroom exists.
func ctxClassroomOwnerMiddleware(svc classroom.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}

			room, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == classroom.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding classroom by ID")
			}
			if room.TeacherID == claims.Subject || claims.IsAdmin {
				ctx.Set("object", room)
				return next(ctx)
			}
			return errHttpNotFound
		}
	}
}

type JoinByCodeRequest struct {
	Code       string `json:"code" validate:"required,classcode"`
	RollNumber string `json:"roll_number" validate:"omitempty,max=20"`
}

func (jr *JoinByCodeRequest) Validate(validate *validator.Validate) error {
	jr.Code = core.CleanStringUpper(jr.Code)
	jr.RollNumber = core.CleanString(jr.RollNumber)
	return validate.Struct(jr)
}
