package domain_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/h2hsecure/moodlews/internal/domain"
	. "github.com/onsi/gomega"
	"github.com/samber/lo"
)

type fakeTransport struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []domain.RemoteFunctionCall
	creds     []domain.Credential
}

func newFakeTransport(responses map[string]string) *fakeTransport {
	return &fakeTransport{responses: responses, errs: map[string]error{}}
}

func (f *fakeTransport) Call(_ context.Context, cred domain.Credential, call domain.RemoteFunctionCall) (domain.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call)
	f.creds = append(f.creds, cred)

	if err := f.errs[call.Function]; err != nil {
		return domain.Value{}, err
	}

	body, ok := f.responses[call.Function]
	if !ok {
		return domain.Null(), nil
	}
	return domain.Parse([]byte(body))
}

func (f *fakeTransport) CallRaw(ctx context.Context, cred domain.Credential, call domain.RemoteFunctionCall) ([]byte, error) {
	v, err := f.Call(ctx, cred, call)
	if err != nil {
		return nil, err
	}
	return v.MarshalJSON()
}

func (f *fakeTransport) call(function string) (domain.RemoteFunctionCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, c := range f.calls {
		if c.Function == function {
			return c, true
		}
	}
	return domain.RemoteFunctionCall{}, false
}

const testServer = "http://host:8080/webservice/rest/server.php"

func newTestService(tr *fakeTransport) domain.IService {
	return domain.NewService(domain.Credential{Server: testServer, Token: "secret"}, tr)
}

func TestBaseURLStripsPath(t *testing.T) {
	RegisterTestingT(t)

	svc := newTestService(newFakeTransport(nil))
	Expect(svc.BaseURL()).To(Equal("http://host:8080"))

	Expect(domain.BaseURL("https://moodle.example.com/webservice/rest/server.php")).To(Equal("https://moodle.example.com"))
	Expect(domain.BaseURL("not a url")).To(BeEmpty())
}

func TestGetUserReturnsFirstMatch(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(map[string]string{
		domain.FnGetUsers: `{"users":[{"id":2,"username":"johndoe","email":"john@example.com"},{"id":3,"username":"other"}],"warnings":[]}`,
	})

	user, err := newTestService(tr).GetUser(context.Background(), "email", "john@example.com")
	Expect(err).To(BeNil())
	Expect(user).NotTo(BeNil())
	Expect(user.ID).To(Equal(int64(2)))
	Expect(user.Username).To(Equal("johndoe"))

	call, ok := tr.call(domain.FnGetUsers)
	Expect(ok).To(BeTrue())
	Expect(call.Params.String()).To(Equal(`{"criteria":[{"key":"email","value":"john@example.com"}]}`))
}

func TestGetUserNotFoundIsNil(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(map[string]string{
		domain.FnGetUsers: `{"users":[],"warnings":[]}`,
	})

	user, err := newTestService(tr).GetUser(context.Background(), "username", "ghost")
	Expect(err).To(BeNil())
	Expect(user).To(BeNil())
}

func TestGetUserTransportErrorSurfaces(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(nil)
	tr.errs[domain.FnGetUsers] = &domain.TransportError{Function: domain.FnGetUsers, URL: testServer, StatusCode: 500}

	user, err := newTestService(tr).GetUser(context.Background(), "username", "johndoe")
	Expect(user).To(BeNil())

	var terr *domain.TransportError
	Expect(errors.As(err, &terr)).To(BeTrue())
	Expect(terr.StatusCode).To(Equal(500))
}

func TestRegisterUserWrapsRecord(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(map[string]string{
		domain.FnCreateUsers: `[{"id":1,"username":"johndoe"}]`,
	})

	res, err := newTestService(tr).RegisterUser(context.Background(), domain.NewUser{
		Username:  "johndoe",
		Password:  lo.ToPtr("Test@12345"),
		FirstName: "John",
		Email:     "johndoe@example.com",
		Extra:     []domain.Member{domain.M("city", domain.String("Yogyakarta"))},
	})
	Expect(err).To(BeNil())
	Expect(res.Index(0).Field("username").Text()).To(Equal("johndoe"))

	call, _ := tr.call(domain.FnCreateUsers)
	Expect(call.Params.String()).To(Equal(
		`{"users":[{"username":"johndoe","password":"Test@12345","firstname":"John","lastname":"","email":"johndoe@example.com","city":"Yogyakarta"}]}`,
	))
}

func TestAddStudentToCourseUsesStudentRole(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(nil)

	_, err := newTestService(tr).AddStudentToCourse(context.Background(), 3, 2)
	Expect(err).To(BeNil())

	call, _ := tr.call(domain.FnManualEnrolUsers)
	Expect(call.Params.String()).To(Equal(`{"enrolments":[{"roleid":5,"userid":3,"courseid":2}]}`))
}

func TestCreateGradeCategoryParams(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(nil)
	svc := newTestService(tr)

	_, err := svc.CreateGradeCategory(context.Background(), 2, "Sub-CPMK-1", domain.Object(domain.M("aggregation", domain.Int(13))))
	Expect(err).To(BeNil())

	call, _ := tr.call(domain.FnCreateGradeCategories)
	Expect(call.Params.String()).To(Equal(`{"courseid":2,"categories":[{"fullname":"Sub-CPMK-1","options":{"aggregation":13}}]}`))
}

func TestGetCourseFirstOrNil(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(map[string]string{
		domain.FnGetCoursesByField: `{"courses":[{"id":2,"fullname":"Pengembangan Web","shortname":"PW","categoryid":1}],"warnings":[]}`,
	})

	course, err := newTestService(tr).GetCourse(context.Background(), 2)
	Expect(err).To(BeNil())
	Expect(course.FullName).To(Equal("Pengembangan Web"))
	Expect(course.CategoryID).To(Equal(int64(1)))

	call, _ := tr.call(domain.FnGetCoursesByField)
	Expect(call.Params.String()).To(Equal(`{"field":"id","value":2}`))

	tr = newFakeTransport(map[string]string{
		domain.FnGetCoursesByField: `{"courses":[],"warnings":[]}`,
	})
	course, err = newTestService(tr).GetCourse(context.Background(), 42)
	Expect(err).To(BeNil())
	Expect(course).To(BeNil())
}

func TestGetEnrolledUsersRejectsObject(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(map[string]string{
		domain.FnGetEnrolledUsers: `{"unexpected":true}`,
	})

	_, err := newTestService(tr).GetEnrolledUsers(context.Background(), 2)
	Expect(errors.Is(err, domain.ErrUnexpectedShape)).To(BeTrue())
}

const gradeItemsResponse = `{"usergrades":[
	{"courseid":2,"userid":5,"userfullname":"Ani","gradeitems":[
		{"id":11,"itemname":"Quiz 1","itemtype":"mod","categoryid":3,"graderaw":80},
		{"id":12,"itemname":"Tugas","itemtype":"mod","categoryid":99,"graderaw":null},
		{"id":13,"itemname":null,"itemtype":"course","categoryid":null}
	]},
	{"courseid":2,"userid":9,"userfullname":"Budi","gradeitems":[
		{"id":11,"itemname":"Quiz 1","itemtype":"mod","categoryid":3,"graderaw":65.5}
	]}
],"warnings":[]}`

func TestGradesReportAttachesCategoryNames(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(map[string]string{
		domain.FnGetGradeItems:      gradeItemsResponse,
		domain.FnGetGradeCategories: `[{"id":3,"name":"Sub-CPMK-1"},{"name":"no id"}]`,
	})

	grades, err := newTestService(tr).GradesReport(context.Background(), 2)
	Expect(err).To(BeNil())
	Expect(grades).To(HaveLen(2))

	items := grades[0].GradeItems
	Expect(items).To(HaveLen(3))
	Expect(items[0].CategoryName).To(Equal("Sub-CPMK-1"))
	Expect(items[1].CategoryName).To(Equal(domain.UnknownCategory))
	Expect(items[2].CategoryName).To(Equal(domain.UnknownCategory))
	Expect(*items[0].GradeRaw).To(Equal(80.0))
	Expect(items[1].GradeRaw).To(BeNil())

	Expect(grades[1].GradeItems[0].CategoryName).To(Equal("Sub-CPMK-1"))
	Expect(grades[0].Fields.Field("gradeitems").Index(1).Field("categoryname").Text()).To(Equal("Unknown"))

	_, gradeCall := tr.call(domain.FnGetGradeItems)
	_, categoryCall := tr.call(domain.FnGetGradeCategories)
	Expect(gradeCall).To(BeTrue())
	Expect(categoryCall).To(BeTrue())
}

func TestGradesReportAcceptsWrappedCategories(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(map[string]string{
		domain.FnGetGradeItems:      gradeItemsResponse,
		domain.FnGetGradeCategories: `{"course":{"id":2},"gradecategories":[{"id":99,"course_id":2,"name":"Sub-CPMK-2"}]}`,
	})

	grades, err := newTestService(tr).GradesReport(context.Background(), 2)
	Expect(err).To(BeNil())
	Expect(grades[0].GradeItems[0].CategoryName).To(Equal(domain.UnknownCategory))
	Expect(grades[0].GradeItems[1].CategoryName).To(Equal("Sub-CPMK-2"))
}

func TestGradesReportPropagatesRemoteError(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(map[string]string{
		domain.FnGetGradeItems: gradeItemsResponse,
	})
	tr.errs[domain.FnGetGradeCategories] = &domain.RemoteError{
		Function:  domain.FnGetGradeCategories,
		Exception: "dml_missing_record_exception",
	}

	grades, err := newTestService(tr).GradesReport(context.Background(), 2)
	Expect(grades).To(BeNil())

	var rerr *domain.RemoteError
	Expect(errors.As(err, &rerr)).To(BeTrue())
	Expect(rerr.Exception).To(Equal("dml_missing_record_exception"))
}

func TestGradesWithEmails(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(map[string]string{
		domain.FnGetEnrolledUsers: `[{"id":5,"email":"a@x.com"},{"id":7},{"email":"orphan@x.com"}]`,
		domain.FnGetGradeItems:    gradeItemsResponse,
	})

	res, err := newTestService(tr).GradesWithEmails(context.Background(), 2)
	Expect(err).To(BeNil())
	Expect(res.UserGrades).To(HaveLen(2))
	Expect(res.UserGrades[0].UserID).To(Equal(int64(5)))
	Expect(res.UserGrades[0].Email).To(Equal("a@x.com"))
	Expect(res.UserGrades[1].UserID).To(Equal(int64(9)))
	Expect(res.UserGrades[1].Email).To(Equal(""))

	email, ok := res.UserGrades[1].Fields.Get("email")
	Expect(ok).To(BeTrue())
	Expect(email.Kind()).To(Equal(domain.KindString))

	Expect(res.Schema).To(Equal([]domain.GradeSchemaItem{
		{ID: 11, ItemType: "mod", ItemName: "Quiz 1"},
		{ID: 12, ItemType: "mod", ItemName: "Tugas"},
		{ID: 13, ItemType: "course", ItemName: ""},
	}))
}

func TestGradesWithEmailsNoUsers(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(map[string]string{
		domain.FnGetEnrolledUsers: `[]`,
		domain.FnGetGradeItems:    `{"usergrades":[],"warnings":[]}`,
	})

	res, err := newTestService(tr).GradesWithEmails(context.Background(), 2)
	Expect(err).To(BeNil())
	Expect(res.UserGrades).To(BeEmpty())
	Expect(res.Schema).To(BeEmpty())
}

func TestGradesWithEmailsRejectsNonArrayEnrolment(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(map[string]string{
		domain.FnGetEnrolledUsers: `{"users":[]}`,
		domain.FnGetGradeItems:    gradeItemsResponse,
	})

	_, err := newTestService(tr).GradesWithEmails(context.Background(), 2)
	Expect(errors.Is(err, domain.ErrUnexpectedShape)).To(BeTrue())

	_, called := tr.call(domain.FnGetGradeItems)
	Expect(called).To(BeFalse())
}

func TestWithTokenReturnsNewService(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(nil)
	svc := newTestService(tr)
	other := svc.WithToken("rotated").WithServer("https://elearning.example.ac.id/webservice/rest/server.php")

	Expect(svc.Credential().Token).To(Equal("secret"))
	Expect(svc.BaseURL()).To(Equal("http://host:8080"))
	Expect(other.Credential().Token).To(Equal("rotated"))
	Expect(other.BaseURL()).To(Equal("https://elearning.example.ac.id"))

	_, err := other.GetCategories(context.Background())
	Expect(err).To(BeNil())
	Expect(tr.creds).To(HaveLen(1))
	Expect(tr.creds[0].Token).To(Equal("rotated"))
}

func TestGetUsersByUsernamesJoinsNames(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(map[string]string{
		domain.FnGetUsers: `{"users":[{"id":1,"username":"a"},{"id":2,"username":"b"}],"warnings":[]}`,
	})
	svc := newTestService(tr)

	v, err := svc.GetUsersByUsernames(context.Background(), []string{"a", "b"})
	Expect(err).To(BeNil())
	Expect(v.Field("users").Len()).To(Equal(2))

	call, _ := tr.call(domain.FnGetUsers)
	Expect(call.Params.String()).To(Equal(`{"criteria":[{"key":"username","value":"a,b"}]}`))

	v, err = svc.GetUserByUsername(context.Background(), "a")
	Expect(err).To(BeNil())
	Expect(v.Field("warnings").Kind()).To(Equal(domain.KindArray))
}

func TestGetUserCoursesAndCourses(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(map[string]string{
		domain.FnGetUsersCourses: `[{"id":2,"shortname":"ALG","fullname":"Algoritma","category":4}]`,
		domain.FnGetCourses:      `[{"id":1,"shortname":"site"},{"id":2,"shortname":"ALG"}]`,
	})
	svc := newTestService(tr)

	courses, err := svc.GetUserCourses(context.Background(), 7)
	Expect(err).To(BeNil())
	Expect(courses).To(HaveLen(1))
	Expect(courses[0].ID).To(Equal(int64(2)))
	Expect(courses[0].ShortName).To(Equal("ALG"))

	call, _ := tr.call(domain.FnGetUsersCourses)
	Expect(call.Params.String()).To(Equal(`{"userid":7}`))

	all, err := svc.GetCourses(context.Background())
	Expect(err).To(BeNil())
	Expect(all).To(HaveLen(2))
}

func TestGetCourseCategories(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(map[string]string{
		domain.FnGetCourseCategories: `[{"id":4,"name":"Informatika","parent":1}]`,
		domain.FnGetCategories:       `{"categories":[]}`,
	})
	svc := newTestService(tr)

	categories, err := svc.GetCourseCategories(context.Background(), "parent", "1")
	Expect(err).To(BeNil())
	Expect(categories).To(HaveLen(1))
	Expect(categories[0].Name).To(Equal("Informatika"))
	Expect(categories[0].Parent).To(Equal(int64(1)))

	call, _ := tr.call(domain.FnGetCourseCategories)
	Expect(call.Params.String()).To(Equal(`{"criteria":[{"key":"parent","value":"1"}]}`))

	v, err := svc.GetCategories(context.Background())
	Expect(err).To(BeNil())
	Expect(v.String()).To(Equal(`{"categories":[]}`))
}

func TestSelfEnrolParams(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(nil)
	svc := newTestService(tr)
	ctx := context.Background()

	_, err := svc.EnrolSelf(ctx, 2, 7, "key")
	Expect(err).To(BeNil())
	_, err = svc.CreateStudentSelfEnrol(ctx, 7, 2, "pw")
	Expect(err).To(BeNil())
	_, err = svc.GetSelfEnrolCourse(ctx, 2, "pw")
	Expect(err).To(BeNil())

	call, _ := tr.call(domain.FnSelfEnrolUser)
	Expect(call.Params.String()).To(Equal(`{"courseid":2,"userid":7,"enrolpassword":"key"}`))

	call, _ = tr.call(domain.FnCreateSelfEnrol)
	Expect(call.Params.String()).To(Equal(`{"courseid":2,"password":"pw","userid":7}`))

	call, _ = tr.call(domain.FnGetSelfEnrol)
	Expect(call.Params.String()).To(Equal(`{"courseid":2,"password":"pw"}`))
}

func TestGradeReportFunctions(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(map[string]string{
		domain.FnGetGradeCategories:    `{"course":2,"gradecategories":[{"id":9,"name":"Tugas"}]}`,
		domain.FnCourseGradeCategories: `[{"id":9}]`,
	})
	svc := newTestService(tr)
	ctx := context.Background()

	categories, err := svc.GetGradeCategories(ctx, 2)
	Expect(err).To(BeNil())
	Expect(categories).To(HaveLen(1))
	Expect(categories[0].Name).To(Equal("Tugas"))

	v, err := svc.GetCourseGradeCategories(ctx, 2)
	Expect(err).To(BeNil())
	Expect(v.Len()).To(Equal(1))

	_, err = svc.GetGradeReportCourse(ctx, 2)
	Expect(err).To(BeNil())
	_, err = svc.GetGradeReportSelfEnrol(ctx, 2, "pw")
	Expect(err).To(BeNil())

	call, _ := tr.call(domain.FnGradeReport)
	Expect(call.Params.String()).To(Equal(`{"courseid":2}`))

	call, _ = tr.call(domain.FnGradeReportSelfEnrol)
	Expect(call.Params.String()).To(Equal(`{"courseid":2,"password":"pw"}`))
}

func TestCallRawPassesBodyThrough(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(map[string]string{"core_webservice_get_site_info": `{"sitename":"UAD"}`})

	body, err := newTestService(tr).CallRaw(context.Background(), "core_webservice_get_site_info", domain.Null())
	Expect(err).To(BeNil())
	Expect(string(body)).To(Equal(`{"sitename":"UAD"}`))
}

func TestRegisterUserSendsSetFieldsAsGiven(t *testing.T) {
	RegisterTestingT(t)

	tr := newFakeTransport(nil)

	_, err := newTestService(tr).RegisterUser(context.Background(), domain.NewUser{
		Username:  "jdoe",
		FirstName: "John",
		LastName:  "Doe",
		Email:     "jdoe@example.ac.id",
		Auth:      lo.ToPtr("manual"),
		IDNumber:  lo.ToPtr(""),
	})
	Expect(err).To(BeNil())

	call, _ := tr.call(domain.FnCreateUsers)
	Expect(call.Params.String()).To(Equal(
		`{"users":[{"username":"jdoe","firstname":"John","lastname":"Doe","email":"jdoe@example.ac.id","auth":"manual","idnumber":""}]}`,
	))
}
