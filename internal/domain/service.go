package domain

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Web service functions called by Service.
const (
	FnGetUsers              = "core_user_get_users"
	FnCreateUsers           = "core_user_create_users"
	FnGetEnrolledUsers      = "core_enrol_get_enrolled_users"
	FnGetUsersCourses       = "core_enrol_get_users_courses"
	FnGetCourses            = "core_course_get_courses"
	FnGetCoursesByField     = "core_course_get_courses_by_field"
	FnGetCategories         = "core_category_get_categories"
	FnGetCourseCategories   = "core_course_get_categories"
	FnManualEnrolUsers      = "enrol_manual_enrol_users"
	FnSelfEnrolUser         = "enrol_self_enrol_user"
	FnCreateGradeCategories = "core_grades_create_gradecategories"
	FnGetGradeItems         = "gradereport_user_get_grade_items"
	FnGetGradeCategories    = "local_gradecategories_get_grade_categories"
	FnCourseGradeCategories = "uad_get_gradecategories_course"
	FnGradeReport           = "uad_get_gradereport"
	FnGradeReportSelfEnrol  = "uad_get_gradereport_selfenrol"
	FnGetSelfEnrol          = "uad_get_selfenrol"
	FnCreateSelfEnrol       = "uad_create_selfenrol"
)

// StudentRoleID is the id of the student role on a stock Moodle site.
const StudentRoleID = 5

type Service struct {
	transport Transport
	cred      Credential
	baseURL   string
}

type IService interface {
	BaseURL() string
	Credential() Credential
	WithToken(token string) IService
	WithServer(server string) IService

	Call(ctx context.Context, function string, params Value) (Value, error)
	CallRaw(ctx context.Context, function string, params Value) ([]byte, error)

	GetUser(ctx context.Context, key, value string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (Value, error)
	GetUsersByUsernames(ctx context.Context, usernames []string) (Value, error)
	RegisterUser(ctx context.Context, user NewUser) (Value, error)
	GetEnrolledUsers(ctx context.Context, courseID int64) ([]User, error)
	GetUserCourses(ctx context.Context, userID int64) ([]Course, error)

	GetCourses(ctx context.Context) ([]Course, error)
	GetCourse(ctx context.Context, courseID int64) (*Course, error)
	GetCategories(ctx context.Context) (Value, error)
	GetCourseCategories(ctx context.Context, key, value string) ([]Category, error)

	AddStudentToCourse(ctx context.Context, studentID, courseID int64) (Value, error)
	EnrolSelf(ctx context.Context, courseID, userID int64, enrolmentKey string) (Value, error)
	CreateStudentSelfEnrol(ctx context.Context, userID, courseID int64, password string) (Value, error)
	GetSelfEnrolCourse(ctx context.Context, courseID int64, password string) (Value, error)

	CreateGradeCategory(ctx context.Context, courseID int64, name string, options Value) (Value, error)
	GetGradeCategories(ctx context.Context, courseID int64) ([]GradeCategory, error)
	GetCourseGradeCategories(ctx context.Context, courseID int64) (Value, error)
	GetGradeReportCourse(ctx context.Context, courseID int64) (Value, error)
	GetGradeReportSelfEnrol(ctx context.Context, courseID int64, password string) (Value, error)
	GradesReport(ctx context.Context, courseID int64) ([]UserGrade, error)
	GradesWithEmails(ctx context.Context, courseID int64) (GradesWithEmails, error)
}

func NewService(cred Credential, transport Transport) IService {
	return &Service{
		transport: transport,
		cred:      cred,
		baseURL:   BaseURL(cred.Server),
	}
}

// BaseURL reduces a server address to scheme://host[:port].
func BaseURL(server string) string {
	u, err := url.Parse(strings.TrimSpace(server))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// BaseURL implements IService.
func (s *Service) BaseURL() string {
	return s.baseURL
}

// Credential implements IService.
func (s *Service) Credential() Credential {
	return s.cred
}

// WithToken implements IService.
func (s *Service) WithToken(token string) IService {
	cred := s.cred
	cred.Token = token
	return NewService(cred, s.transport)
}

// WithServer implements IService.
func (s *Service) WithServer(server string) IService {
	cred := s.cred
	cred.Server = server
	return NewService(cred, s.transport)
}

// Call implements IService.
func (s *Service) Call(ctx context.Context, function string, params Value) (Value, error) {
	return s.transport.Call(ctx, s.cred, RemoteFunctionCall{Function: function, Params: params})
}

// CallRaw implements IService.
func (s *Service) CallRaw(ctx context.Context, function string, params Value) ([]byte, error) {
	return s.transport.CallRaw(ctx, s.cred, RemoteFunctionCall{Function: function, Params: params})
}

func criteria(key, value string) Value {
	return Object(M("criteria", Array(Object(
		M("key", String(key)),
		M("value", String(value)),
	))))
}

func courseParams(courseID int64) Value {
	return Object(M("courseid", Int(courseID)))
}

// GetUser implements IService. It returns the first matching user, or nil
// when the search matches nobody.
func (s *Service) GetUser(ctx context.Context, key, value string) (*User, error) {
	v, err := s.Call(ctx, FnGetUsers, criteria(key, value))
	if err != nil {
		return nil, err
	}

	users := v.Field("users")
	if users.Kind() != KindArray || users.Len() == 0 {
		return nil, nil
	}

	user := UserFromValue(users.Index(0))
	return &user, nil
}

// GetUserByUsername implements IService.
func (s *Service) GetUserByUsername(ctx context.Context, username string) (Value, error) {
	return s.Call(ctx, FnGetUsers, criteria("username", username))
}

// GetUsersByUsernames implements IService.
func (s *Service) GetUsersByUsernames(ctx context.Context, usernames []string) (Value, error) {
	return s.Call(ctx, FnGetUsers, criteria("username", strings.Join(usernames, ",")))
}

// RegisterUser implements IService.
func (s *Service) RegisterUser(ctx context.Context, user NewUser) (Value, error) {
	v, err := s.Call(ctx, FnCreateUsers, Object(M("users", Array(user.Value()))))
	if err != nil {
		return Value{}, err
	}

	log.Info().Str("user", user.Username).Msg("registered")

	return v, nil
}

// GetEnrolledUsers implements IService.
func (s *Service) GetEnrolledUsers(ctx context.Context, courseID int64) ([]User, error) {
	v, err := s.Call(ctx, FnGetEnrolledUsers, courseParams(courseID))
	if err != nil {
		return nil, err
	}
	return arrayOf(FnGetEnrolledUsers, v, UserFromValue)
}

// GetUserCourses implements IService.
func (s *Service) GetUserCourses(ctx context.Context, userID int64) ([]Course, error) {
	v, err := s.Call(ctx, FnGetUsersCourses, Object(M("userid", Int(userID))))
	if err != nil {
		return nil, err
	}
	return arrayOf(FnGetUsersCourses, v, CourseFromValue)
}

// GetCourses implements IService.
func (s *Service) GetCourses(ctx context.Context) ([]Course, error) {
	v, err := s.Call(ctx, FnGetCourses, Object())
	if err != nil {
		return nil, err
	}
	return arrayOf(FnGetCourses, v, CourseFromValue)
}

// GetCourse implements IService. It returns nil when no course has the id.
func (s *Service) GetCourse(ctx context.Context, courseID int64) (*Course, error) {
	v, err := s.Call(ctx, FnGetCoursesByField, Object(
		M("field", String("id")),
		M("value", Int(courseID)),
	))
	if err != nil {
		return nil, err
	}

	courses := v.Field("courses")
	if courses.Kind() != KindArray || courses.Len() == 0 {
		return nil, nil
	}

	course := CourseFromValue(courses.Index(0))
	return &course, nil
}

// GetCategories implements IService.
func (s *Service) GetCategories(ctx context.Context) (Value, error) {
	return s.Call(ctx, FnGetCategories, Object())
}

// GetCourseCategories implements IService.
func (s *Service) GetCourseCategories(ctx context.Context, key, value string) ([]Category, error) {
	v, err := s.Call(ctx, FnGetCourseCategories, criteria(key, value))
	if err != nil {
		return nil, err
	}
	return arrayOf(FnGetCourseCategories, v, CategoryFromValue)
}

// AddStudentToCourse implements IService.
func (s *Service) AddStudentToCourse(ctx context.Context, studentID, courseID int64) (Value, error) {
	v, err := s.Call(ctx, FnManualEnrolUsers, Object(M("enrolments", Array(Object(
		M("roleid", Int(StudentRoleID)),
		M("userid", Int(studentID)),
		M("courseid", Int(courseID)),
	)))))
	if err != nil {
		return Value{}, err
	}

	log.Info().Int64("user", studentID).Int64("course", courseID).Msg("enrolled")

	return v, nil
}

// EnrolSelf implements IService.
func (s *Service) EnrolSelf(ctx context.Context, courseID, userID int64, enrolmentKey string) (Value, error) {
	return s.Call(ctx, FnSelfEnrolUser, Object(
		M("courseid", Int(courseID)),
		M("userid", Int(userID)),
		M("enrolpassword", String(enrolmentKey)),
	))
}

// CreateStudentSelfEnrol implements IService.
func (s *Service) CreateStudentSelfEnrol(ctx context.Context, userID, courseID int64, password string) (Value, error) {
	return s.Call(ctx, FnCreateSelfEnrol, Object(
		M("courseid", Int(courseID)),
		M("password", String(password)),
		M("userid", Int(userID)),
	))
}

// GetSelfEnrolCourse implements IService.
func (s *Service) GetSelfEnrolCourse(ctx context.Context, courseID int64, password string) (Value, error) {
	return s.Call(ctx, FnGetSelfEnrol, Object(
		M("courseid", Int(courseID)),
		M("password", String(password)),
	))
}

// CreateGradeCategory implements IService. options is sent as the options
// structure of the category and may be null.
func (s *Service) CreateGradeCategory(ctx context.Context, courseID int64, name string, options Value) (Value, error) {
	category := Object(M("fullname", String(name)))
	if !options.IsNull() {
		category = category.With("options", options)
	}

	return s.Call(ctx, FnCreateGradeCategories, Object(
		M("courseid", Int(courseID)),
		M("categories", Array(category)),
	))
}

// GetGradeCategories implements IService.
func (s *Service) GetGradeCategories(ctx context.Context, courseID int64) ([]GradeCategory, error) {
	v, err := s.Call(ctx, FnGetGradeCategories, courseParams(courseID))
	if err != nil {
		return nil, err
	}

	records, err := gradeCategoryRecords(v)
	if err != nil {
		return nil, err
	}

	return arrayOf(FnGetGradeCategories, Array(records...), GradeCategoryFromValue)
}

// GetCourseGradeCategories implements IService.
func (s *Service) GetCourseGradeCategories(ctx context.Context, courseID int64) (Value, error) {
	return s.Call(ctx, FnCourseGradeCategories, courseParams(courseID))
}

// GetGradeReportCourse implements IService.
func (s *Service) GetGradeReportCourse(ctx context.Context, courseID int64) (Value, error) {
	return s.Call(ctx, FnGradeReport, courseParams(courseID))
}

// GetGradeReportSelfEnrol implements IService.
func (s *Service) GetGradeReportSelfEnrol(ctx context.Context, courseID int64, password string) (Value, error) {
	return s.Call(ctx, FnGradeReportSelfEnrol, Object(
		M("courseid", Int(courseID)),
		M("password", String(password)),
	))
}

// GradesReport implements IService. The grade items of every user get the
// name of their grade category attached.
func (s *Service) GradesReport(ctx context.Context, courseID int64) ([]UserGrade, error) {
	var grades, categories Value

	grp, gctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		v, err := s.Call(gctx, FnGetGradeItems, courseParams(courseID))
		grades = v
		return err
	})

	grp.Go(func() error {
		v, err := s.Call(gctx, FnGetGradeCategories, courseParams(courseID))
		categories = v
		return err
	})

	if err := grp.Wait(); err != nil {
		return nil, err
	}

	userGrades, err := userGradesFrom(grades)
	if err != nil {
		return nil, err
	}

	records, err := gradeCategoryRecords(categories)
	if err != nil {
		return nil, err
	}

	names := CategoryNames(records)

	log.Debug().Int64("course", courseID).Int("users", len(userGrades)).Int("categories", len(names)).Msg("grades report")

	return MergeCategoryNames(userGrades, names), nil
}

// GradesWithEmails implements IService.
func (s *Service) GradesWithEmails(ctx context.Context, courseID int64) (GradesWithEmails, error) {
	enrolled, err := s.Call(ctx, FnGetEnrolledUsers, courseParams(courseID))
	if err != nil {
		return GradesWithEmails{}, err
	}
	if enrolled.Kind() != KindArray {
		return GradesWithEmails{}, fmt.Errorf("%s: expected array, got %s: %w", FnGetEnrolledUsers, enrolled.Kind(), ErrUnexpectedShape)
	}

	emails := EmailLookup(enrolled.Items())

	grades, err := s.Call(ctx, FnGetGradeItems, courseParams(courseID))
	if err != nil {
		return GradesWithEmails{}, err
	}

	userGrades, err := userGradesFrom(grades)
	if err != nil {
		return GradesWithEmails{}, err
	}

	log.Debug().Int64("course", courseID).Int("users", len(userGrades)).Int("enrolled", len(emails)).Msg("grades with emails")

	return GradesWithEmails{
		UserGrades: MergeEmails(userGrades, emails),
		Schema:     GradeSchema(userGrades),
	}, nil
}

func userGradesFrom(v Value) ([]UserGrade, error) {
	usergrades, ok := v.Get("usergrades")
	if !ok {
		return nil, fmt.Errorf("%s: no usergrades in response: %w", FnGetGradeItems, ErrUnexpectedShape)
	}
	return arrayOf(FnGetGradeItems, usergrades, UserGradeFromValue)
}

// gradeCategoryRecords accepts both a bare list of categories and the
// {"course", "gradecategories"} wrapper some site plugins answer with.
func gradeCategoryRecords(v Value) ([]Value, error) {
	switch v.Kind() {
	case KindArray:
		return v.Items(), nil
	case KindObject:
		if wrapped := v.Field("gradecategories"); wrapped.Kind() == KindArray {
			return wrapped.Items(), nil
		}
	}
	return nil, fmt.Errorf("%s: expected array, got %s: %w", FnGetGradeCategories, v.Kind(), ErrUnexpectedShape)
}
